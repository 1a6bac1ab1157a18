package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// ChatRepo defines the persistence operations for chat groups and messages.
type ChatRepo interface {
	// CreateGroup inserts a group together with its members.
	CreateGroup(ctx context.Context, g domain.ChatGroup) (domain.ChatGroup, error)

	// GetGroup retrieves a group with its member ids.
	// Returns domain.ErrNotFound if no group with that ID exists.
	GetGroup(ctx context.Context, id uuid.UUID) (domain.ChatGroup, error)

	// CreateMessage inserts a message and returns it with id and timestamp set.
	CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error)

	// GetMessage retrieves a single message.
	// Returns domain.ErrNotFound if no message with that ID exists.
	GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error)

	// DeleteMessage removes a message. Returns domain.ErrNotFound if it does not exist.
	DeleteMessage(ctx context.Context, id uuid.UUID) error
}

type pgChatRepo struct {
	db db
}

// NewChatRepo constructs a ChatRepo backed by the provided db connection.
func NewChatRepo(db db) ChatRepo {
	return &pgChatRepo{db: db}
}

func (r *pgChatRepo) CreateGroup(ctx context.Context, g domain.ChatGroup) (domain.ChatGroup, error) {
	const insGroup = `
		INSERT INTO chat_groups (name)
		VALUES (@name)
		RETURNING id, created_at`
	const insMember = `
		INSERT INTO chat_group_members (group_id, user_id)
		VALUES (@group_id, @user_id)
		ON CONFLICT DO NOTHING`

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var id pgtype.UUID
		if err := tx.QueryRow(ctx, insGroup, pgx.NamedArgs{"name": g.Name}).Scan(&id, &g.CreatedAt); err != nil {
			return err
		}
		g.ID = uuid.UUID(id.Bytes)
		for _, uid := range g.Members {
			if _, err := tx.Exec(ctx, insMember, pgx.NamedArgs{"group_id": g.ID, "user_id": uid}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.ChatGroup{}, fmt.Errorf("repo.ChatRepo.CreateGroup: %w", err)
	}
	return g, nil
}

func (r *pgChatRepo) GetGroup(ctx context.Context, id uuid.UUID) (domain.ChatGroup, error) {
	const q = `
		SELECT g.id, g.name, g.created_at,
		       COALESCE(array_agg(m.user_id ORDER BY m.user_id) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		FROM chat_groups g
		LEFT JOIN chat_group_members m ON m.group_id = g.id
		WHERE g.id = @id
		GROUP BY g.id`

	var (
		g       domain.ChatGroup
		gid     pgtype.UUID
		members []pgtype.UUID
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&gid, &g.Name, &g.CreatedAt, &members)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatGroup{}, fmt.Errorf("repo.ChatRepo.GetGroup: %w", domain.ErrNotFound)
		}
		return domain.ChatGroup{}, fmt.Errorf("repo.ChatRepo.GetGroup: %w", err)
	}
	g.ID = uuid.UUID(gid.Bytes)
	g.Members = make([]uuid.UUID, len(members))
	for i, m := range members {
		g.Members[i] = uuid.UUID(m.Bytes)
	}
	return g, nil
}

func (r *pgChatRepo) CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	const q = `
		INSERT INTO chat_messages (group_id, sender_id, contents)
		VALUES (@group_id, @sender_id, @contents)
		RETURNING id, group_id, sender_id, contents, created_at`

	args := pgx.NamedArgs{"group_id": m.GroupID, "sender_id": m.SenderID, "contents": m.Contents}
	result, err := scanMessage(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Message{}, fmt.Errorf("repo.ChatRepo.CreateMessage: %w", err)
	}
	return result, nil
}

func (r *pgChatRepo) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	const q = `
		SELECT id, group_id, sender_id, contents, created_at
		FROM chat_messages
		WHERE id = @id`

	result, err := scanMessage(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Message{}, fmt.Errorf("repo.ChatRepo.GetMessage: %w", err)
	}
	return result, nil
}

func (r *pgChatRepo) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM chat_messages WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.ChatRepo.DeleteMessage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ChatRepo.DeleteMessage: %w", domain.ErrNotFound)
	}
	return nil
}

func scanMessage(s scanner) (domain.Message, error) {
	var (
		m                 domain.Message
		id, group, sender pgtype.UUID
	)
	if err := s.Scan(&id, &group, &sender, &m.Contents, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, domain.ErrNotFound
		}
		return domain.Message{}, err
	}
	m.ID = uuid.UUID(id.Bytes)
	m.GroupID = uuid.UUID(group.Bytes)
	m.SenderID = uuid.UUID(sender.Bytes)
	return m, nil
}
