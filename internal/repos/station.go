// Package repos holds the database access layer.
package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/types"
)

type StationRepo interface {
	Create(ctx context.Context, station *types.Station) (*types.Station, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Station, error)
	ListByEspecialidade(ctx context.Context, especialidade string, limit int) ([]*types.Station, error)
}

type stationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStationRepo(db *gorm.DB, baseLog *logger.Logger) StationRepo {
	return &stationRepo{db: db, log: baseLog.With("repo", "StationRepo")}
}

func (r *stationRepo) Create(ctx context.Context, station *types.Station) (*types.Station, error) {
	if station.ID == uuid.Nil {
		station.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(station).Error; err != nil {
		return nil, err
	}
	return station, nil
}

func (r *stationRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Station, error) {
	var result types.Station
	if err := r.db.WithContext(ctx).First(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *stationRepo) ListByEspecialidade(ctx context.Context, especialidade string, limit int) ([]*types.Station, error) {
	if limit <= 0 {
		limit = 50
	}
	var results []*types.Station
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if especialidade != "" {
		query = query.Where("especialidade = ?", especialidade)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
