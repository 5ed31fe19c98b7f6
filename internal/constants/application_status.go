package constants

import "fmt"

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	switch status := ApplicationStatus(s); status {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return status, nil
	default:
		return "", fmt.Errorf("unknown application status %q", s)
	}
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationAccepted || s == ApplicationRejected || s == ApplicationWithdrawn
}

// Decision is the task creator's verdict on a pending application.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ParseDecision also accepts the resulting status names ("accepted",
// "rejected") which older clients send.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "accept", "accepted":
		return DecisionAccept, nil
	case "reject", "rejected":
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}
