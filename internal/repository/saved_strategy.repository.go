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

type SavedStrategyRepository interface {
	Get(savedStrategyID uuid.UUID) (*model.SavedStrategy, error)
	Add(m model.SavedStrategy) (*model.SavedStrategy, error)
	List() ([]model.SavedStrategy, error)
}

type savedStrategyRepositoryHandler struct {
	Db *sql.DB
}

func NewSavedStrategyRepository(db *sql.DB) SavedStrategyRepository {
	return savedStrategyRepositoryHandler{db}
}

func (h savedStrategyRepositoryHandler) Add(m model.SavedStrategy) (*model.SavedStrategy, error) {
	m.CreatedAt = time.Now().UTC()
	m.ModifiedAt = time.Now().UTC()

	query := table.SavedStrategy.
		INSERT(table.SavedStrategy.MutableColumns).
		MODEL(m).
		RETURNING(table.SavedStrategy.AllColumns)

	out := model.SavedStrategy{}
	err := query.Query(h.Db, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to insert saved strategy: %w", err)
	}

	return &out, nil
}

func (h savedStrategyRepositoryHandler) Get(savedStrategyID uuid.UUID) (*model.SavedStrategy, error) {
	query := table.SavedStrategy.
		SELECT(table.SavedStrategy.AllColumns).
		WHERE(table.SavedStrategy.SavedStrategyID.EQ(postgres.UUID(savedStrategyID)))

	out := model.SavedStrategy{}
	err := query.Query(h.Db, &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, fmt.Errorf("saved strategy %s not found", savedStrategyID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get saved strategy %s: %w", savedStrategyID, err)
	}

	return &out, nil
}

func (h savedStrategyRepositoryHandler) List() ([]model.SavedStrategy, error) {
	query := table.SavedStrategy.
		SELECT(table.SavedStrategy.AllColumns).
		ORDER_BY(table.SavedStrategy.CreatedAt.DESC())

	out := []model.SavedStrategy{}
	err := query.Query(h.Db, &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return out, nil
}
