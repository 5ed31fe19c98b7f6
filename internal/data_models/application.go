package dto

import (
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

type ApplicationRequest struct {
	TaskID           string       `json:"taskId"`
	ProposedBudget   BudgetData   `json:"proposedBudget"`
	ProposedSchedule ScheduleData `json:"proposedSchedule"`
	CoverLetter      string       `json:"coverLetter"`
}

func (r ApplicationRequest) Input() services.ApplicationInput {
	return services.ApplicationInput{
		ProposedBudget: r.ProposedBudget.Model(),
		ProposedSchedule: model.Schedule{
			StartAt:  r.ProposedSchedule.StartAt,
			EndAt:    r.ProposedSchedule.EndAt,
			Flexible: r.ProposedSchedule.Flexible,
		},
		CoverLetter: r.CoverLetter,
	}
}

// DecisionRequest takes "accept"/"reject" in decision, or the resulting
// status name in status. Message, when set, is posted to the application
// thread once the decision is made.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type MessageRequest struct {
	Text string `json:"text"`
}
