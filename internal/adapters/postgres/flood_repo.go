package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

// FloodRepo implements ports.FloodRepository on the floods table.
type FloodRepo struct {
	db *DB
}

func NewFloodRepo(db *DB) *FloodRepo {
	return &FloodRepo{db: db}
}

func (r *FloodRepo) List(ctx context.Context) ([]domain.FloodLine, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, coordinates
		FROM floods ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query floods: %w", err)
	}
	defer rows.Close()

	floods := []domain.FloodLine{}
	for rows.Next() {
		var (
			fl  domain.FloodLine
			raw []byte
		)
		if err := rows.Scan(&fl.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan flood: %w", err)
		}
		if err := json.Unmarshal(raw, &fl.Coordinates); err != nil {
			return nil, fmt.Errorf("decode flood %s: %w", fl.ID, err)
		}
		if fl.Coordinates == nil {
			fl.Coordinates = domain.Polyline{}
		}
		floods = append(floods, fl)
	}
	return floods, rows.Err()
}

func (r *FloodRepo) Add(ctx context.Context, coordinates domain.Polyline) (domain.FloodLine, error) {
	if coordinates == nil {
		coordinates = domain.Polyline{}
	}
	data, err := json.Marshal(coordinates)
	if err != nil {
		return domain.FloodLine{}, fmt.Errorf("encode coordinates: %w", err)
	}

	fl := domain.FloodLine{ID: uuid.NewString(), Coordinates: coordinates.Clone()}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO floods (id, coordinates) VALUES ($1::uuid, $2::jsonb)
	`, fl.ID, string(data))
	if err != nil {
		return domain.FloodLine{}, fmt.Errorf("insert flood: %w", err)
	}
	return fl, nil
}

// Remove reports false for ids that are not valid UUIDs without querying.
func (r *FloodRepo) Remove(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM floods WHERE id = $1::uuid`, id)
	if err != nil {
		return false, fmt.Errorf("delete flood: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
