package model

import "time"

// Plan is a schedulable event with a fixed reference timezone. The timezone and
// the date window are set at creation and never change once time blocks exist,
// so stored blocks keep a stable interpretation.
type Plan struct {
	ID        string
	Name      string
	Timezone  string
	CreatorID string
	Dates     []string // YYYY-MM-DD, interpreted in the plan timezone
	StartHour int      // inclusive, 0-23
	EndHour   int      // exclusive, 1-24
	CreatedAt time.Time
}

const (
	KindUser  = "user"
	KindGuest = "guest"
)

// Participant is either a platform account or a plan-scoped guest. Keeping both
// behind one type keeps the aggregator identity-agnostic.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Kind        string `json:"kind"`
}

// TimeBlock is one participant's claimed availability window. Blocks for the
// same participant may overlap at write time; overlap resolution happens at
// read time in the merge engine.
type TimeBlock struct {
	ID            string
	PlanID        string
	ParticipantID string
	IsGuest       bool
	StartAt       time.Time
	EndAt         time.Time
	CreatedAt     time.Time
}
