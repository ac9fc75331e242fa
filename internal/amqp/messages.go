package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReloadMessage asks every consumer to drop its caches and re-read the
// reference tables.
type ReloadMessage struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requestedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewReloadMessage(reason, requestedBy string) *ReloadMessage {
	return &ReloadMessage{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReloadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReloadMessageFromJSON decodes a message; a missing timestamp is rejected.
func ReloadMessageFromJSON(data []byte) (*ReloadMessage, error) {
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Timestamp.IsZero() {
		return nil, errors.New("reload message without timestamp")
	}
	return &msg, nil
}
