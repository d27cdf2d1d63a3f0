package domain

import "time"

// Notification is the audit record written for every delivery attempt. The
// recipient also reads these as an inbox.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	Title          string    `json:"title" dynamodbav:"title"`
	Message        string    `json:"message" dynamodbav:"message"`
	Channel        string    `json:"channel" dynamodbav:"channel"`
	Outcome        string    `json:"outcome" dynamodbav:"outcome"`
	DeliveryID     string    `json:"delivery_id,omitempty" dynamodbav:"delivery_id,omitempty"`
	CorrelationID  string    `json:"correlation_id,omitempty" dynamodbav:"correlation_id,omitempty"`
	Read           int       `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}
