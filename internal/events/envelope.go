package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshmart/storefront/internal/cart"
)

const (
	CartMergedEventName   = "CartMerged"
	UserSignedUpEventName = "UserSignedUp"
	eventVersion          = 1
)

// Envelope is the wire format shared by every storefront event. The
// partition key is the user id; Sequence is monotonic per partition.
type Envelope struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	Sequence     int64     `json:"sequence"`
	OccurredAt   time.Time `json:"occurredAt"`
	Payload      any       `json:"payload"`
}

type CartMergedPayload struct {
	UserID string      `json:"userId"`
	Items  []cart.Line `json:"items"`
}

type UserSignedUpPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func newEnvelope(name, partitionKey string, sequence int64, payload any) Envelope {
	return Envelope{
		EventName:    name,
		EventVersion: eventVersion,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: partitionKey,
		Sequence:     sequence,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	}
}
