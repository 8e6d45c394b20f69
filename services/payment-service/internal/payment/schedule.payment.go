// services/payment-service/internal/payment/schedule.payment.go
package payment

import "fmt"

// ScheduleStatus is the local state of a recurring billing schedule.
type ScheduleStatus string

const (
	ScheduleActive      ScheduleStatus = "active"
	ScheduleCanceled    ScheduleStatus = "canceled"
	ScheduleRescheduled ScheduleStatus = "rescheduled"
	// SchedulePaused means the remote schedule was canceled and a resume instruction is stored.
	SchedulePaused ScheduleStatus = "paused-instruction-pending"
)

// scheduleTransitions is the legal transition table. Moving to active is always allowed
// because resume and create are the same operation against the gateway.
var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleActive:      {ScheduleCanceled, ScheduleRescheduled, SchedulePaused},
	ScheduleRescheduled: {ScheduleCanceled, ScheduleRescheduled, SchedulePaused},
	SchedulePaused:      {ScheduleCanceled},
	ScheduleCanceled:    {},
}

// Valid reports whether s is one of the known statuses.
func (s ScheduleStatus) Valid() bool {
	_, ok := scheduleTransitions[s]
	return ok
}

// CanTransitionSchedule reports whether from -> to is legal.
func CanTransitionSchedule(from, to ScheduleStatus) bool {
	if !to.Valid() {
		return false
	}
	if to == ScheduleActive {
		return true
	}
	for _, next := range scheduleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSchedule validates from -> to and returns ErrIllegalScheduleTransition otherwise.
func TransitionSchedule(from, to ScheduleStatus) error {
	if !CanTransitionSchedule(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalScheduleTransition, from, to)
	}
	return nil
}
