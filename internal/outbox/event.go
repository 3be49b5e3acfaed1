package outbox

// Event is the domain event envelope written to the outbox table. The Kafka
// topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventPlanCreated      = "meet.plan.created.v1"
	EventGuestCreated     = "meet.guest.created.v1"
	EventTimeblockCreated = "meet.timeblock.created.v1"
	EventTimeblockDeleted = "meet.timeblock.deleted.v1"
)
