package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical wrapper for events published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Account       string          `json:"account"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// EmailChannelRecord is one synced email channel as written to the sinks.
type EmailChannelRecord struct {
	Account            string          `json:"account"`
	ID                 string          `json:"id"`
	Email              string          `json:"email"`
	SubscriptionStatus string          `json:"subscription_status"`
	Raw                json.RawMessage `json:"raw"`
	SyncedAt           time.Time       `json:"synced_at"`
}
