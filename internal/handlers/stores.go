package handlers

import (
	"context"

	"github.com/tuturuuu/meetsync/internal/model"
)

// PlanStore and BlockStore are the persistence seams consumed by the handlers.
// They are injected per handler rather than reached through package-level
// clients so nothing holds hidden cross-request state.
type PlanStore interface {
	Create(ctx context.Context, plan *model.Plan) (string, error)
	Get(ctx context.Context, id string) (model.Plan, error)
	ListParticipants(ctx context.Context, planID string) ([]model.Participant, error)
}

type BlockStore interface {
	SaveBlock(ctx context.Context, block *model.TimeBlock) (string, error)
	LoadBlocks(ctx context.Context, planID string) ([]model.TimeBlock, error)
	DeleteBlocksForParticipant(ctx context.Context, planID, participantID string, isGuest bool) (int64, error)
}

// SlotCache is satisfied by cache.SlotCache. Get reports the plan version it
// observed; the caller passes that version back into Set so a concurrent
// Invalidate orphans the entry instead of letting it mask the write.
type SlotCache interface {
	Get(ctx context.Context, planID, variant string) ([]byte, int64, bool)
	Set(ctx context.Context, planID, variant string, version int64, payload []byte) error
	Invalidate(ctx context.Context, planID string) error
}
