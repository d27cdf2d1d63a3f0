package queue

import (
	"fmt"

	"github.com/barbershop-booking/internal/domain"
)

// Reason names the rule that decided to notify.
type Reason string

const (
	ReasonFirstInLine  Reason = "first-in-line"
	ReasonSecondInLine Reason = "second-in-line"
	ReasonMovedUp      Reason = "moved-up-within-top-3"
)

// Decision is the outcome of evaluating one queue observation.
type Decision struct {
	Fire   bool
	Reason Reason
	Title  string
	Body   string
}

// Evaluate decides whether the move from previous to current deserves a
// notification. It has no side effects; the caller owns state updates.
// A nil previous is the baseline observation and never fires.
//
// Moving up only counts as "within the top 3" when the previous position was
// already in the top 3, so arriving at #3 from further back stays silent.
func Evaluate(previous *domain.QueueEntry, current domain.QueueEntry, state domain.NotificationState) Decision {
	if previous == nil {
		return Decision{}
	}
	movedUp := current.Position < previous.Position

	switch {
	case current.Position == 1 && !state.HasFiredAtPositionOne:
		return compose(ReasonFirstInLine, current)
	case current.Position == 2 && movedUp:
		return compose(ReasonSecondInLine, current)
	case current.Position <= 3 && previous.Position <= 3 && movedUp:
		return compose(ReasonMovedUp, current)
	}
	return Decision{}
}

func compose(reason Reason, e domain.QueueEntry) Decision {
	title, body := Message(reason, e)
	return Decision{Fire: true, Reason: reason, Title: title, Body: body}
}

// Message renders the notification text for reason at entry e. It is also
// used to pre-fill operator-sent notifications.
func Message(reason Reason, e domain.QueueEntry) (title, body string) {
	switch reason {
	case ReasonFirstInLine:
		return "It's your turn!", "You're next in line. Please make your way to the barber chair."
	case ReasonSecondInLine:
		return "Almost your turn", fmt.Sprintf("You're #2 in line, about %s to go.", minutes(e.EstimatedWaitMinutes))
	default:
		return "You moved up in the queue", fmt.Sprintf("You're now #%d in line, estimated wait %s.", e.Position, minutes(e.EstimatedWaitMinutes))
	}
}

// DefaultReason picks the message template matching a position when no
// transition is known, e.g. for an operator broadcast.
func DefaultReason(position int) Reason {
	switch position {
	case 1:
		return ReasonFirstInLine
	case 2:
		return ReasonSecondInLine
	default:
		return ReasonMovedUp
	}
}

func minutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
