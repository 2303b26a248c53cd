package api

import (
	"fmt"
	"time"

	"stratengine/internal/domain"
	l3_service "stratengine/internal/service/l3"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type evaluateRequest struct {
	CorrelationID   *uuid.UUID `json:"correlationID"`
	Source          string     `json:"source"`
	SavedStrategyID *uuid.UUID `json:"savedStrategyID"`
	AsOf            *time.Time `json:"asOf"`
	Universe        []string   `json:"universe"`
}

type evaluateResponse struct {
	CorrelationID uuid.UUID           `json:"correlationID"`
	AsOf          time.Time           `json:"asOf"`
	Weights       map[string]string   `json:"weights"`
	Trace         []domain.TraceEntry `json:"trace"`
	FromFallback  bool                `json:"fromFallback"`
	Duplicate     bool                `json:"duplicate"`
}

func (m ApiHandler) evaluate(c *gin.Context) {
	var requestBody evaluateRequest
	if err := c.BindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request body: %w", err), c, 400)
		return
	}
	if requestBody.Source == "" && requestBody.SavedStrategyID == nil {
		returnErrorJsonCode(fmt.Errorf("either source or savedStrategyID is required"), c, 400)
		return
	}

	req := l3_service.EvaluationRequest{
		Source:          requestBody.Source,
		SavedStrategyID: requestBody.SavedStrategyID,
		Universe:        requestBody.Universe,
	}
	if requestBody.CorrelationID != nil {
		req.CorrelationID = *requestBody.CorrelationID
	}
	if requestBody.AsOf != nil {
		req.AsOf = *requestBody.AsOf
	}

	result, err := m.Engine.Evaluate(c.Request.Context(), req)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	if result.Duplicate {
		c.JSON(200, evaluateResponse{
			CorrelationID: req.CorrelationID,
			Duplicate:     true,
		})
		return
	}

	weights := map[string]string{}
	for symbol, w := range result.Allocation.Weights {
		weights[symbol] = w.String()
	}

	c.JSON(200, evaluateResponse{
		CorrelationID: result.Allocation.CorrelationID,
		AsOf:          result.Allocation.AsOf,
		Weights:       weights,
		Trace:         result.Trace.Entries,
		FromFallback:  result.FromFallback,
	})
}
