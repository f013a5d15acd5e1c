package models

import (
	"fmt"
	"strings"
)

type MenteeStatus string

const (
	MenteeStatusAssigned     MenteeStatus = "assigned"
	MenteeStatusContacted    MenteeStatus = "contacted"
	MenteeStatusInTouch      MenteeStatus = "in_touch"
	MenteeStatusArrived      MenteeStatus = "arrived"
	MenteeStatusMet          MenteeStatus = "met"
	MenteeStatusServed       MenteeStatus = "served"
	MenteeStatusRejected     MenteeStatus = "rejected"
	MenteeStatusUnresponsive MenteeStatus = "unresponsive"
)

func MenteeStatuses() []MenteeStatus {
	return []MenteeStatus{
		MenteeStatusAssigned,
		MenteeStatusContacted,
		MenteeStatusInTouch,
		MenteeStatusArrived,
		MenteeStatusMet,
		MenteeStatusServed,
		MenteeStatusRejected,
		MenteeStatusUnresponsive,
	}
}

func (s MenteeStatus) IsValid() bool {
	for _, known := range MenteeStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// HumanReadable turns "in_touch" into "In touch".
func (s MenteeStatus) HumanReadable() string {
	words := strings.ReplaceAll(string(s), "_", " ")
	if words == "" {
		return ""
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

// TransitionPolicy decides whether a mentee may move between two statuses.
type TransitionPolicy interface {
	Allow(from, to MenteeStatus) bool
	Name() string
}

type permissivePolicy struct{}

// PermissiveTransitions allows any status to follow any other.
var PermissiveTransitions TransitionPolicy = permissivePolicy{}

func (permissivePolicy) Allow(from, to MenteeStatus) bool { return to.IsValid() }
func (permissivePolicy) Name() string                     { return "permissive" }

type strictPolicy struct {
	next map[MenteeStatus][]MenteeStatus
}

// StrictTransitions follows the mentoring lifecycle. Rejected and served are
// terminal; unresponsive mentees can be picked up again.
var StrictTransitions TransitionPolicy = strictPolicy{
	next: map[MenteeStatus][]MenteeStatus{
		MenteeStatusAssigned:     {MenteeStatusContacted, MenteeStatusRejected, MenteeStatusUnresponsive},
		MenteeStatusContacted:    {MenteeStatusInTouch, MenteeStatusRejected, MenteeStatusUnresponsive},
		MenteeStatusInTouch:      {MenteeStatusArrived, MenteeStatusRejected, MenteeStatusUnresponsive},
		MenteeStatusArrived:      {MenteeStatusMet, MenteeStatusRejected},
		MenteeStatusMet:          {MenteeStatusServed, MenteeStatusRejected},
		MenteeStatusUnresponsive: {MenteeStatusContacted, MenteeStatusInTouch, MenteeStatusRejected},
	},
}

func (p strictPolicy) Allow(from, to MenteeStatus) bool {
	if !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range p.next[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (strictPolicy) Name() string { return "strict" }

// ParseTransitionPolicy maps a configuration value to a policy.
func ParseTransitionPolicy(name string) (TransitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "permissive":
		return PermissiveTransitions, nil
	case "strict":
		return StrictTransitions, nil
	default:
		return nil, fmt.Errorf("unknown mentee status policy %q", name)
	}
}
