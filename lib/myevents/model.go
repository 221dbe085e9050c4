package myevents

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type EventEnvelope struct {
	UID           string `gorm:"primaryKey"`
	CreatedAt     time.Time
	Topic         string
	AggregateUID  string
	EventTypeName string
	EventPayload  string `datastore:",noindex"`
	Published     bool
}

func (e EventEnvelope) String() string {
	return e.Topic + "." + e.EventTypeName + "." + e.AggregateUID
}

type Event interface {
	GetEventTypeName() string
	GetAggregateName() string
}

// PushRequest is what a pubsub push-subscription posts to its endpoint.
type PushRequest struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

type PushMessage struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Data       []byte            `json:"data,omitempty"`
	ID         string            `json:"messageId"`
}

func ParseEventEnvelope(body io.Reader) (EventEnvelope, error) {
	req := PushRequest{}
	err := json.NewDecoder(body).Decode(&req)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("error decoding push request: %s", err)
	}

	envelope := EventEnvelope{}
	err = json.Unmarshal(req.Message.Data, &envelope)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("error decoding event envelope: %s", err)
	}

	return envelope, nil
}
