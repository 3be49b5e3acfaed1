package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tuturuuu/meetsync/internal/model"
	"github.com/tuturuuu/meetsync/internal/outbox"
	"github.com/tuturuuu/meetsync/libs/db"
)

type PlanRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewPlanRepository(pool *db.Pool, outboxRepo *outbox.Repository) *PlanRepository {
	return &PlanRepository{pool: pool, outboxRepo: outboxRepo}
}

func (r *PlanRepository) Create(ctx context.Context, plan *model.Plan) (string, error) {
	id := uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO plans (id, name, timezone, creator_id, dates, start_hour, end_hour)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, id, plan.Name, plan.Timezone, plan.CreatorID, plan.Dates, plan.StartHour, plan.EndHour).Scan(&createdAt)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"plan_id":    id,
		"name":       plan.Name,
		"timezone":   plan.Timezone,
		"creator_id": plan.CreatorID,
		"created_at": createdAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "plan",
		AggregateID:   id,
		EventType:     outbox.EventPlanCreated,
		Payload:       payload,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	plan.ID = id
	plan.CreatedAt = createdAt
	return id, nil
}

func (r *PlanRepository) Get(ctx context.Context, id string) (model.Plan, error) {
	var plan model.Plan
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, creator_id, dates, start_hour, end_hour, created_at
		FROM plans
		WHERE id = $1
	`, id).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Timezone,
		&plan.CreatorID,
		&plan.Dates,
		&plan.StartHour,
		&plan.EndHour,
		&plan.CreatedAt,
	)
	if err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

// ListParticipants returns every identity attached to the plan: guests from
// the guest table plus platform users who have saved at least one block.
func (r *PlanRepository) ListParticipants(ctx context.Context, planID string) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name FROM guests
		WHERE plan_id = $1
		ORDER BY name
	`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.DisplayName); err != nil {
			return nil, err
		}
		p.Kind = model.KindGuest
		participants = append(participants, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	userRows, err := r.pool.Query(ctx, `
		SELECT DISTINCT participant_id FROM timeblocks
		WHERE plan_id = $1 AND is_guest = false
		ORDER BY participant_id
	`, planID)
	if err != nil {
		return nil, err
	}
	defer userRows.Close()

	for userRows.Next() {
		var p model.Participant
		if err := userRows.Scan(&p.ID); err != nil {
			return nil, err
		}
		p.Kind = model.KindUser
		participants = append(participants, p)
	}
	if userRows.Err() != nil {
		return nil, userRows.Err()
	}
	return participants, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
