package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type evaluationRunResponse struct {
	EvaluationRunID uuid.UUID  `json:"evaluationRunID"`
	CorrelationID   uuid.UUID  `json:"correlationID"`
	SavedStrategyID *uuid.UUID `json:"savedStrategyID"`
	Status          string     `json:"status"`
	ErrorMessage    *string    `json:"errorMessage"`
	Allocation      *string    `json:"allocation"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (m ApiHandler) getEvaluationRuns(c *gin.Context) {
	if m.EvaluationRunRepository == nil {
		returnErrorJsonCode(fmt.Errorf("evaluation run persistence is not configured"), c, 503)
		return
	}

	correlationID, err := uuid.Parse(c.Param("correlationID"))
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("invalid correlation id: %w", err), c, 400)
		return
	}

	runs, err := m.EvaluationRunRepository.ListByCorrelationID(correlationID)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	out := []evaluationRunResponse{}
	for _, r := range runs {
		out = append(out, evaluationRunResponse{
			EvaluationRunID: r.EvaluationRunID,
			CorrelationID:   r.CorrelationID,
			SavedStrategyID: r.SavedStrategyID,
			Status:          r.Status,
			ErrorMessage:    r.ErrorMessage,
			Allocation:      r.Allocation,
			CreatedAt:       r.CreatedAt,
		})
	}

	c.JSON(200, out)
}
