package models

// PlanStatus is the lifecycle state of a plan document.
type PlanStatus string

// Plan statuses. Complete and Cancelled are terminal.
const (
	StatusPlanned   PlanStatus = "planned"
	StatusActive    PlanStatus = "active"
	StatusPaused    PlanStatus = "paused"
	StatusComplete  PlanStatus = "complete"
	StatusCancelled PlanStatus = "cancelled"
)

// transitions is the allowed status graph:
// Planned → Active → {Paused, Complete, Cancelled}; Paused → Active.
var transitions = map[PlanStatus][]PlanStatus{
	StatusPlanned: {StatusActive},
	StatusActive:  {StatusPaused, StatusComplete, StatusCancelled},
	StatusPaused:  {StatusActive},
}

// Valid reports whether s is a known plan status.
func (s PlanStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusPaused, StatusComplete, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition out of s is possible.
func (s PlanStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// CanTransition reports whether a plan may move from s to next.
// A no-op transition (s == next) is always allowed.
func (s PlanStatus) CanTransition(next PlanStatus) bool {
	if s == next {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
