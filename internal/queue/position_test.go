package queue

import (
	"testing"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func appt(id, customer string, at time.Duration, minutes int, status domain.AppointmentStatus) domain.Appointment {
	return domain.Appointment{
		AppointmentID:   id,
		CustomerID:      customer,
		ScheduledAt:     day.Add(at),
		DurationMinutes: minutes,
		Status:          status,
		CreatedAt:       day.Add(-time.Hour),
	}
}

func TestPositions_OrdersByScheduleAndSumsWait(t *testing.T) {
	got := Positions([]domain.Appointment{
		appt("a3", "c3", 60*time.Minute, 20, domain.StatusPending),
		appt("a1", "c1", 0, 30, domain.StatusConfirmed),
		appt("a2", "c2", 30*time.Minute, 45, domain.StatusPending),
	})

	require.Len(t, got, 3)
	assert.Equal(t, domain.QueueEntry{AppointmentID: "a1", Position: 1, EstimatedWaitMinutes: 0}, got["c1"])
	assert.Equal(t, domain.QueueEntry{AppointmentID: "a2", Position: 2, EstimatedWaitMinutes: 30}, got["c2"])
	assert.Equal(t, domain.QueueEntry{AppointmentID: "a3", Position: 3, EstimatedWaitMinutes: 75}, got["c3"])
}

func TestPositions_SkipsInactive(t *testing.T) {
	got := Positions([]domain.Appointment{
		appt("a1", "c1", 0, 30, domain.StatusCompleted),
		appt("a2", "c2", 30*time.Minute, 30, domain.StatusCancelled),
		appt("a3", "c3", 60*time.Minute, 30, domain.StatusPending),
	})

	require.Len(t, got, 1)
	assert.Equal(t, 1, got["c3"].Position)
	assert.Zero(t, got["c3"].EstimatedWaitMinutes)
}

func TestPositions_TieBreaksOnCreationThenID(t *testing.T) {
	early := appt("b", "c1", 0, 10, domain.StatusPending)
	late := appt("a", "c2", 0, 10, domain.StatusPending)
	late.CreatedAt = early.CreatedAt.Add(time.Minute)
	sameA := appt("z", "c3", time.Hour, 10, domain.StatusPending)
	sameB := appt("y", "c4", time.Hour, 10, domain.StatusPending)

	got := Positions([]domain.Appointment{late, sameA, early, sameB})

	assert.Equal(t, 1, got["c1"].Position)
	assert.Equal(t, 2, got["c2"].Position)
	assert.Equal(t, 3, got["c4"].Position)
	assert.Equal(t, 4, got["c3"].Position)
}

func TestPositions_CustomerRepresentedByEarliest(t *testing.T) {
	got := Positions([]domain.Appointment{
		appt("a1", "c1", 0, 30, domain.StatusPending),
		appt("a2", "c2", 30*time.Minute, 30, domain.StatusPending),
		appt("a3", "c1", 60*time.Minute, 30, domain.StatusPending),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "a1", got["c1"].AppointmentID)
	assert.Equal(t, 2, got["c2"].Position)
}

func TestPositions_Empty(t *testing.T) {
	assert.Empty(t, Positions(nil))
}
