package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tuturuuu/meetsync/internal/guest"
	"github.com/tuturuuu/meetsync/internal/outbox"
	"github.com/tuturuuu/meetsync/libs/db"
)

// GuestRepository implements guest.Store over Postgres. The (plan_id, name)
// uniqueness constraint resolves concurrent first-time logins: the loser gets
// a duplicate-key failure and retries as a login.
type GuestRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewGuestRepository(pool *db.Pool, outboxRepo *outbox.Repository) *GuestRepository {
	return &GuestRepository{pool: pool, outboxRepo: outboxRepo}
}

func (r *GuestRepository) GetByName(ctx context.Context, planID, name string) (guest.Credentials, error) {
	var creds guest.Credentials
	err := r.pool.QueryRow(ctx, `
		SELECT id, password_hash, password_salt
		FROM guests
		WHERE plan_id = $1 AND name = $2
	`, planID, name).Scan(&creds.ID, &creds.PasswordHash, &creds.PasswordSalt)
	if err != nil {
		if IsNotFound(err) {
			return guest.Credentials{}, guest.ErrNotFound
		}
		return guest.Credentials{}, err
	}
	return creds, nil
}

func (r *GuestRepository) Create(ctx context.Context, planID, name, passwordHash, passwordSalt string) (string, error) {
	id := uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO guests (id, plan_id, name, password_hash, password_salt)
		VALUES ($1, $2, $3, $4, $5)
	`, id, planID, name, passwordHash, passwordSalt)
	if err != nil {
		if IsDuplicate(err) {
			return "", guest.ErrDuplicateName
		}
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"guest_id":   id,
		"plan_id":    planID,
		"name":       name,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "guest",
		AggregateID:   id,
		EventType:     outbox.EventGuestCreated,
		Payload:       payload,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}
