package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stratengine/internal/db/models/postgres/public/model"
	"stratengine/internal/db/models/postgres/public/table"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
	"github.com/google/uuid"
)

const (
	EvaluationRunStatusCompleted = "COMPLETED"
	EvaluationRunStatusFallback  = "FALLBACK"
)

// EvaluationRunRepository persists the audit row for each evaluation
// request - status, error and the produced allocation as JSON.
type EvaluationRunRepository interface {
	Add(m model.EvaluationRun) error
	ListByCorrelationID(correlationID uuid.UUID) ([]model.EvaluationRun, error)
}

type evaluationRunRepositoryHandler struct {
	Db *sql.DB
}

func NewEvaluationRunRepository(db *sql.DB) EvaluationRunRepository {
	return evaluationRunRepositoryHandler{db}
}

func (h evaluationRunRepositoryHandler) Add(m model.EvaluationRun) error {
	m.CreatedAt = time.Now().UTC()

	query := table.EvaluationRun.INSERT(table.EvaluationRun.MutableColumns).MODEL(m)
	_, err := query.Exec(h.Db)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation run: %w", err)
	}

	return nil
}

func (h evaluationRunRepositoryHandler) ListByCorrelationID(correlationID uuid.UUID) ([]model.EvaluationRun, error) {
	query := table.EvaluationRun.
		SELECT(table.EvaluationRun.AllColumns).
		WHERE(table.EvaluationRun.CorrelationID.EQ(postgres.UUID(correlationID))).
		ORDER_BY(table.EvaluationRun.CreatedAt.DESC())

	out := []model.EvaluationRun{}
	err := query.Query(h.Db, &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return out, nil
}
