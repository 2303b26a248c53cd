package api

import (
	"fmt"
	"time"

	"stratengine/internal/db/models/postgres/public/model"
	"stratengine/internal/lang"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type saveStrategyRequest struct {
	StrategyName   string  `json:"strategyName"`
	StrategySource string  `json:"strategySource"`
	CashSymbol     *string `json:"cashSymbol"`
}

type savedStrategyResponse struct {
	SavedStrategyID uuid.UUID `json:"savedStrategyID"`
	StrategyName    string    `json:"strategyName"`
	StrategySource  string    `json:"strategySource"`
	CashSymbol      *string   `json:"cashSymbol"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (m ApiHandler) saveStrategy(c *gin.Context) {
	if m.SavedStrategyRepository == nil {
		returnErrorJsonCode(fmt.Errorf("strategy persistence is not configured"), c, 503)
		return
	}

	var requestBody saveStrategyRequest
	if err := c.BindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request body: %w", err), c, 400)
		return
	}
	if requestBody.StrategyName == "" {
		returnErrorJsonCode(fmt.Errorf("strategyName is required"), c, 400)
		return
	}

	// reject strategies that cannot even parse; they would only ever
	// produce the fail-safe allocation
	if _, err := lang.Parse(requestBody.StrategySource); err != nil {
		returnErrorJsonCode(fmt.Errorf("invalid strategy source: %w", err), c, 400)
		return
	}

	strategy, err := m.SavedStrategyRepository.Add(model.SavedStrategy{
		StrategyName:   requestBody.StrategyName,
		StrategySource: requestBody.StrategySource,
		CashSymbol:     requestBody.CashSymbol,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, savedStrategyResponse{
		SavedStrategyID: strategy.SavedStrategyID,
		StrategyName:    strategy.StrategyName,
		StrategySource:  strategy.StrategySource,
		CashSymbol:      strategy.CashSymbol,
		CreatedAt:       strategy.CreatedAt,
	})
}

func (m ApiHandler) getSavedStrategies(c *gin.Context) {
	if m.SavedStrategyRepository == nil {
		returnErrorJsonCode(fmt.Errorf("strategy persistence is not configured"), c, 503)
		return
	}

	savedStrategies, err := m.SavedStrategyRepository.List()
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	out := []savedStrategyResponse{}
	for _, s := range savedStrategies {
		out = append(out, savedStrategyResponse{
			SavedStrategyID: s.SavedStrategyID,
			StrategyName:    s.StrategyName,
			StrategySource:  s.StrategySource,
			CashSymbol:      s.CashSymbol,
			CreatedAt:       s.CreatedAt,
		})
	}

	c.JSON(200, out)
}
