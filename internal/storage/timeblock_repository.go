package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tuturuuu/meetsync/internal/model"
	"github.com/tuturuuu/meetsync/internal/outbox"
	"github.com/tuturuuu/meetsync/libs/db"
)

type TimeblockRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewTimeblockRepository(pool *db.Pool, outboxRepo *outbox.Repository) *TimeblockRepository {
	return &TimeblockRepository{pool: pool, outboxRepo: outboxRepo}
}

func (r *TimeblockRepository) SaveBlock(ctx context.Context, block *model.TimeBlock) (string, error) {
	id := uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO timeblocks (id, plan_id, participant_id, is_guest, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, id, block.PlanID, block.ParticipantID, block.IsGuest, block.StartAt, block.EndAt).Scan(&createdAt)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"timeblock_id":   id,
		"plan_id":        block.PlanID,
		"participant_id": block.ParticipantID,
		"is_guest":       block.IsGuest,
		"start_at":       block.StartAt.UTC().Format(time.RFC3339),
		"end_at":         block.EndAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "timeblock",
		AggregateID:   id,
		EventType:     outbox.EventTimeblockCreated,
		Payload:       payload,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	block.ID = id
	block.CreatedAt = createdAt
	return id, nil
}

// LoadBlocks reads every block for the plan in one query, so a single
// aggregation request sees one consistent snapshot.
func (r *TimeblockRepository) LoadBlocks(ctx context.Context, planID string) ([]model.TimeBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, plan_id, participant_id, is_guest, start_at, end_at, created_at
		FROM timeblocks
		WHERE plan_id = $1
		ORDER BY start_at ASC
	`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.TimeBlock
	for rows.Next() {
		var b model.TimeBlock
		if err := rows.Scan(&b.ID, &b.PlanID, &b.ParticipantID, &b.IsGuest, &b.StartAt, &b.EndAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func (r *TimeblockRepository) DeleteBlocksForParticipant(ctx context.Context, planID, participantID string, isGuest bool) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM timeblocks
		WHERE plan_id = $1 AND participant_id = $2 AND is_guest = $3
	`, planID, participantID, isGuest)
	if err != nil {
		return 0, err
	}
	deleted := tag.RowsAffected()

	if deleted > 0 {
		payload, err := json.Marshal(map[string]any{
			"plan_id":        planID,
			"participant_id": participantID,
			"is_guest":       isGuest,
			"deleted":        deleted,
		})
		if err != nil {
			return 0, err
		}
		if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "timeblock",
			AggregateID:   participantID,
			EventType:     outbox.EventTimeblockDeleted,
			Payload:       payload,
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return deleted, nil
}
