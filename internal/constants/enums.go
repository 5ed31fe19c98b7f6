package constants

import "fmt"

type Role string

const (
	RolePoster Role = "poster"
	RoleTasker Role = "tasker"
	RoleBoth   Role = "both"
)

// ParseRole maps the legacy "requester" role onto poster.
func ParseRole(s string) (Role, error) {
	switch s {
	case "poster", "requester":
		return RolePoster, nil
	case "tasker":
		return RoleTasker, nil
	case "both":
		return RoleBoth, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Performs reports whether the role makes a profile a match candidate.
func (r Role) Performs() bool {
	return r == RoleTasker || r == RoleBoth
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(s); u {
	case "":
		return UrgencyNormal, nil
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return u, nil
	default:
		return "", fmt.Errorf("unknown urgency %q", s)
	}
}
