package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// DestinationRepo reads the places trip legs can visit.
type DestinationRepo interface {
	// Create inserts a destination and returns it with its generated id.
	Create(ctx context.Context, name string) (domain.Destination, error)

	// GetMany returns the destinations that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Destination, error)
}

type pgDestinationRepo struct {
	db db
}

// NewDestinationRepo constructs a DestinationRepo backed by the provided db connection.
func NewDestinationRepo(db db) DestinationRepo {
	return &pgDestinationRepo{db: db}
}

func (r *pgDestinationRepo) Create(ctx context.Context, name string) (domain.Destination, error) {
	const q = `INSERT INTO destinations (name) VALUES (@name) RETURNING id, name`

	var (
		d  domain.Destination
		id pgtype.UUID
	)
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"name": name}).Scan(&id, &d.Name); err != nil {
		return domain.Destination{}, fmt.Errorf("repo.DestinationRepo.Create: %w", err)
	}
	d.ID = uuid.UUID(id.Bytes)
	return d, nil
}

func (r *pgDestinationRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Destination, error) {
	out := make(map[uuid.UUID]domain.Destination, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT id, name FROM destinations WHERE id = ANY(@ids)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.DestinationRepo.GetMany: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   pgtype.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("repo.DestinationRepo.GetMany: scan: %w", err)
		}
		out[uuid.UUID(id.Bytes)] = domain.Destination{ID: uuid.UUID(id.Bytes), Name: name}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.DestinationRepo.GetMany: rows: %w", err)
	}
	return out, nil
}
