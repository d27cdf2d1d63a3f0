package domain

// QueueEntry is a read-only snapshot of a customer's place in today's queue.
type QueueEntry struct {
	AppointmentID        string `json:"appointment_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// NotificationState is owned by a single watch session and reset whenever
// the customer's queue entry disappears.
type NotificationState struct {
	PreviousPosition      *int `json:"previous_position"`
	HasFiredAtPositionOne bool `json:"has_fired_at_position_one"`
}
