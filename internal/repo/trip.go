// Package repo contains all database access logic for the Flockr API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup. Begin on a pgx.Tx opens a
// savepoint, so WithTx nests inside a test transaction.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripNodeRepo defines the persistence operations for trip nodes and their
// role assignments. Nodes are stored one row each; a composite's children are
// the rows whose parent_id points at it, ordered by position.
type TripNodeRepo interface {
	// Load returns an arena holding, for every id given, the whole top-level
	// trip that contains it: its ancestors up to the root and every
	// descendant of that root, deleted or not. Ids that do not exist are
	// simply absent from the result.
	Load(ctx context.Context, ids ...uuid.UUID) (*domain.Tree, error)

	// Upsert inserts n or overwrites its row, storing it at position under
	// its parent. A parent must be stored before its children.
	Upsert(ctx context.Context, n *domain.TripNode, position int) error

	// Delete permanently removes the given nodes and, by cascade, their
	// descendants and role assignments.
	Delete(ctx context.Context, ids ...uuid.UUID) error

	// ReplaceRoles sets the role assignments of nodeID to exactly roles.
	ReplaceRoles(ctx context.Context, nodeID uuid.UUID, roles []domain.RoleAssignment) error

	// SetDeleted flips the soft-delete flag. expiry is stored when deleting
	// and cleared when restoring. Returns domain.ErrNotFound if no node has id.
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, expiry *time.Time) error

	// ListForUser returns one page of ids of live nodes userID holds a role
	// on, newest first, and the total count.
	ListForUser(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) ([]uuid.UUID, int64, error)

	// CoMembers returns every user other than userID who shares a live trip
	// node with them.
	CoMembers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	// PurgeExpired permanently removes soft-deleted nodes whose expiry is at
	// or before now, returning how many rows were removed directly.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// WithTx runs fn against a repo bound to a single transaction, committing
	// when fn returns nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(TripNodeRepo) error) error
}

// pgTripNodeRepo is the Postgres implementation of TripNodeRepo.
type pgTripNodeRepo struct {
	db db
}

// NewTripNodeRepo constructs a TripNodeRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripNodeRepo(db db) TripNodeRepo {
	return &pgTripNodeRepo{db: db}
}

func (r *pgTripNodeRepo) WithTx(ctx context.Context, fn func(TripNodeRepo) error) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgTripNodeRepo{db: tx})
	})
	if err != nil {
		return fmt.Errorf("repo.TripNodeRepo.WithTx: %w", err)
	}
	return nil
}

// Load walks up from each id to its root with one recursive query, then back
// down to every descendant. UNION rather than UNION ALL stops a corrupt cycle
// from looping forever.
func (r *pgTripNodeRepo) Load(ctx context.Context, ids ...uuid.UUID) (*domain.Tree, error) {
	tree := domain.NewTree()
	if len(ids) == 0 {
		return tree, nil
	}

	const q = `
		WITH RECURSIVE up AS (
			SELECT id, parent_id FROM trip_nodes WHERE id = ANY(@ids)
			UNION
			SELECT p.id, p.parent_id FROM trip_nodes p JOIN up ON p.id = up.parent_id
		), down AS (
			SELECT id FROM up WHERE parent_id IS NULL
			UNION
			SELECT c.id FROM trip_nodes c JOIN down ON c.parent_id = down.id
		)
		SELECT n.id, n.kind, n.name, n.destination_id, COALESCE(d.name, ''),
		       n.arrival, n.arrival_time, n.departure, n.departure_time,
		       n.parent_id, n.deleted, n.deleted_expiry, n.created_at, n.updated_at
		FROM trip_nodes n
		JOIN down ON down.id = n.id
		LEFT JOIN destinations d ON d.id = n.destination_id
		ORDER BY n.parent_id NULLS FIRST, n.position`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.TripNodeRepo.Load: %w", err)
	}
	defer rows.Close()

	var (
		order   []*domain.TripNode
		nodeIDs []uuid.UUID
	)
	for rows.Next() {
		n, err := scanTripNode(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TripNodeRepo.Load: scan: %w", err)
		}
		tree.Insert(n)
		order = append(order, n)
		nodeIDs = append(nodeIDs, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripNodeRepo.Load: rows: %w", err)
	}

	// Rows arrive ordered by (parent, position), so appending keeps child order.
	for _, n := range order {
		if n.ParentID == nil {
			continue
		}
		if p, ok := tree.Node(*n.ParentID); ok {
			p.Children = append(p.Children, n.ID)
		}
	}

	if err := r.loadRoles(ctx, tree, nodeIDs); err != nil {
		return nil, fmt.Errorf("repo.TripNodeRepo.Load: %w", err)
	}
	return tree, nil
}

func (r *pgTripNodeRepo) loadRoles(ctx context.Context, tree *domain.Tree, nodeIDs []uuid.UUID) error {
	const q = `
		SELECT node_id, user_id, role
		FROM trip_node_roles
		WHERE node_id = ANY(@ids)
		ORDER BY node_id, user_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": nodeIDs})
	if err != nil {
		return fmt.Errorf("roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			nodeID, userID pgtype.UUID
			role           string
		)
		if err := rows.Scan(&nodeID, &userID, &role); err != nil {
			return fmt.Errorf("roles: scan: %w", err)
		}
		if n, ok := tree.Node(uuid.UUID(nodeID.Bytes)); ok {
			n.Roles = append(n.Roles, domain.RoleAssignment{UserID: uuid.UUID(userID.Bytes), Role: domain.RoleTag(role)})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("roles: rows: %w", err)
	}
	return nil
}

func (r *pgTripNodeRepo) Upsert(ctx context.Context, n *domain.TripNode, position int) error {
	const q = `
		INSERT INTO trip_nodes (id, kind, name, destination_id, arrival, arrival_time,
		                        departure, departure_time, parent_id, position, deleted, deleted_expiry)
		VALUES (@id, @kind, @name, @destination_id, @arrival, @arrival_time,
		        @departure, @departure_time, @parent_id, @position, @deleted, @deleted_expiry)
		ON CONFLICT (id) DO UPDATE
		SET name           = EXCLUDED.name,
		    destination_id = EXCLUDED.destination_id,
		    arrival        = EXCLUDED.arrival,
		    arrival_time   = EXCLUDED.arrival_time,
		    departure      = EXCLUDED.departure,
		    departure_time = EXCLUDED.departure_time,
		    parent_id      = EXCLUDED.parent_id,
		    position       = EXCLUDED.position,
		    deleted        = EXCLUDED.deleted,
		    deleted_expiry = EXCLUDED.deleted_expiry,
		    updated_at     = now()`

	args := pgx.NamedArgs{
		"id":             n.ID,
		"kind":           string(n.Kind),
		"name":           n.Name,
		"destination_id": nullableUUID(n.Destination.ID),
		"parent_id":      n.ParentID, // nil becomes NULL
		"position":       position,
		"deleted":        n.Deleted,
		"deleted_expiry": n.DeletedExpiry,
	}
	args["arrival"], args["arrival_time"] = momentArgs(n.Arrival)
	args["departure"], args["departure_time"] = momentArgs(n.Departure)

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.TripNodeRepo.Upsert: %w", err)
	}
	return nil
}

func (r *pgTripNodeRepo) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `DELETE FROM trip_nodes WHERE id = ANY(@ids)`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"ids": ids}); err != nil {
		return fmt.Errorf("repo.TripNodeRepo.Delete: %w", err)
	}
	return nil
}

func (r *pgTripNodeRepo) ReplaceRoles(ctx context.Context, nodeID uuid.UUID, roles []domain.RoleAssignment) error {
	const del = `DELETE FROM trip_node_roles WHERE node_id = @node_id`
	const ins = `
		INSERT INTO trip_node_roles (node_id, user_id, role)
		VALUES (@node_id, @user_id, @role)`

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, del, pgx.NamedArgs{"node_id": nodeID}); err != nil {
			return err
		}
		for _, ra := range roles {
			args := pgx.NamedArgs{"node_id": nodeID, "user_id": ra.UserID, "role": string(ra.Role)}
			if _, err := tx.Exec(ctx, ins, args); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("repo.TripNodeRepo.ReplaceRoles: %w", err)
	}
	return nil
}

func (r *pgTripNodeRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, expiry *time.Time) error {
	const q = `
		UPDATE trip_nodes
		SET deleted        = @deleted,
		    deleted_expiry = @expiry,
		    updated_at     = now()
		WHERE id = @id`

	if !deleted {
		expiry = nil
	}
	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "deleted": deleted, "expiry": expiry})
	if err != nil {
		return fmt.Errorf("repo.TripNodeRepo.SetDeleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripNodeRepo.SetDeleted: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripNodeRepo) ListForUser(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) ([]uuid.UUID, int64, error) {
	const q = `
		SELECT n.id, COUNT(*) OVER () AS total
		FROM trip_nodes n
		JOIN trip_node_roles r ON r.node_id = n.id
		WHERE r.user_id = @user_id
		  AND NOT n.deleted
		ORDER BY n.created_at DESC, n.id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID, "limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripNodeRepo.ListForUser: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	var total int64
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id, &total); err != nil {
			return nil, 0, fmt.Errorf("repo.TripNodeRepo.ListForUser: scan: %w", err)
		}
		ids = append(ids, uuid.UUID(id.Bytes))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripNodeRepo.ListForUser: rows: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(ids) == 0 && p.Offset() > 0 {
		const countQ = `
			SELECT COUNT(*)
			FROM trip_nodes n
			JOIN trip_node_roles r ON r.node_id = n.id
			WHERE r.user_id = @user_id AND NOT n.deleted`
		if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"user_id": userID}).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("repo.TripNodeRepo.ListForUser: count: %w", err)
		}
	}
	return ids, total, nil
}

func (r *pgTripNodeRepo) CoMembers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	const q = `
		SELECT DISTINCT other.user_id
		FROM trip_node_roles mine
		JOIN trip_node_roles other ON other.node_id = mine.node_id
		JOIN trip_nodes n ON n.id = mine.node_id
		WHERE mine.user_id = @user_id
		  AND other.user_id <> @user_id
		  AND NOT n.deleted
		ORDER BY other.user_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripNodeRepo.CoMembers: %w", err)
	}
	defer rows.Close()

	ids, err := scanUUIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("repo.TripNodeRepo.CoMembers: %w", err)
	}
	return ids, nil
}

func (r *pgTripNodeRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `
		DELETE FROM trip_nodes
		WHERE deleted
		  AND deleted_expiry IS NOT NULL
		  AND deleted_expiry <= @now`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return 0, fmt.Errorf("repo.TripNodeRepo.PurgeExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTripNode maps a single trip_nodes row into a domain.TripNode.
// It handles the UUID, nullable date and nullable time-of-day conversions.
func scanTripNode(s scanner) (*domain.TripNode, error) {
	var (
		n             domain.TripNode
		id, parentID  pgtype.UUID
		destID        pgtype.UUID
		kind          string
		arr, dep      pgtype.Date
		arrT, depT    pgtype.Int4
		deletedExpiry pgtype.Timestamptz
	)

	err := s.Scan(&id, &kind, &n.Name, &destID, &n.Destination.Name,
		&arr, &arrT, &dep, &depT,
		&parentID, &n.Deleted, &deletedExpiry, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	n.ID = uuid.UUID(id.Bytes)
	n.Kind = domain.NodeKind(kind)
	if destID.Valid {
		n.Destination.ID = uuid.UUID(destID.Bytes)
	}
	if parentID.Valid {
		p := uuid.UUID(parentID.Bytes)
		n.ParentID = &p
	}
	if deletedExpiry.Valid {
		e := deletedExpiry.Time
		n.DeletedExpiry = &e
	}
	n.Arrival = scanMoment(arr, arrT)
	n.Departure = scanMoment(dep, depT)
	return &n, nil
}

func scanMoment(d pgtype.Date, t pgtype.Int4) *domain.Moment {
	if !d.Valid {
		return nil
	}
	var minutes *int
	if t.Valid {
		m := int(t.Int32)
		minutes = &m
	}
	return domain.NewMoment(d.Time, minutes)
}

// momentArgs splits a Moment into its date and time-of-day columns.
func momentArgs(m *domain.Moment) (any, any) {
	if m == nil {
		return nil, nil
	}
	if m.Time == nil {
		return m.Date, nil
	}
	return m.Date, *m.Time
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func scanUUIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, uuid.UUID(id.Bytes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return ids, nil
}
