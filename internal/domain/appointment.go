package domain

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether an appointment in this status holds a place in the queue.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanBecome reports whether the status may move to next.
// Completed and cancelled appointments are final.
func (s AppointmentStatus) CanBecome(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCompleted || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

type Appointment struct {
	AppointmentID   string            `json:"id" dynamodbav:"appointment_id"`
	CustomerID      string            `json:"customer_id" dynamodbav:"customer_id"`
	CustomerName    string            `json:"customer_name" dynamodbav:"customer_name"`
	ServiceID       string            `json:"service_id" dynamodbav:"service_id"`
	ServiceName     string            `json:"service_name" dynamodbav:"service_name"`
	Date            string            `json:"date" dynamodbav:"date"` // YYYY-MM-DD in shop time
	ScheduledAt     time.Time         `json:"scheduled_at" dynamodbav:"scheduled_at"`
	DurationMinutes int               `json:"duration_minutes" dynamodbav:"duration_minutes"`
	Status          AppointmentStatus `json:"status" dynamodbav:"status"`
	Notes           string            `json:"notes,omitempty" dynamodbav:"notes"`
	CreatedAt       time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time         `json:"updated" dynamodbav:"updated_at"`
}

type BookRequest struct {
	ServiceID   string `json:"service_id" validate:"required"`
	ScheduledAt string `json:"scheduled_at" validate:"required"` // RFC3339
	Notes       string `json:"notes" validate:"max=500"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
}
