package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAppointmentConfirmed = "booking.appointment.confirmed.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
	EventScheduleReplaced     = "availability.schedule.replaced.v1"
	EventSubscriptionUpdated  = "billing.subscription.updated.v1"
)
