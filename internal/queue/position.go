package queue

import (
	"sort"

	"github.com/barbershop-booking/internal/domain"
)

// Positions ranks the active appointments of one day and returns each
// customer's entry. A customer with more than one active appointment is
// represented by the earliest one.
func Positions(appts []domain.Appointment) map[string]domain.QueueEntry {
	active := make([]domain.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Status.Active() {
			active = append(active, a)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.AppointmentID < b.AppointmentID
	})

	out := make(map[string]domain.QueueEntry, len(active))
	wait := 0
	for i, a := range active {
		if _, seen := out[a.CustomerID]; !seen {
			out[a.CustomerID] = domain.QueueEntry{
				AppointmentID:        a.AppointmentID,
				Position:             i + 1,
				EstimatedWaitMinutes: wait,
			}
		}
		wait += a.DurationMinutes
	}
	return out
}
