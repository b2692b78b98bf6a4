package events

import "time"

const NotificationRequestedTopic = "stafflink.notification.requested.v1"

const NotificationRequestedEventType = "notification_requested"

type NotificationRequestedEvent struct {
	EventType     string    `json:"event_type"`
	RequestID     string    `json:"request_id,omitempty"`
	Channel       string    `json:"channel"`
	To            string    `json:"to"`
	Subject       string    `json:"subject,omitempty"`
	Message       string    `json:"message,omitempty"`
	HTML          string    `json:"html,omitempty"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
