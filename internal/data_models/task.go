package dto

import (
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

// TaskRequestData is the body of task create and update. Server-owned fields
// (status, assignee, counters) are not accepted.
type TaskRequestData struct {
	Type           *string       `json:"type"`
	Title          *string       `json:"title"`
	Description    *string       `json:"description"`
	Budget         *BudgetData   `json:"budget"`
	SkillsRequired []string      `json:"skillsRequired"`
	Location       *LocationData `json:"location"`
	Priority       *string       `json:"priority"`
	Urgency        *string       `json:"urgency"`
	Images         []string      `json:"images"`
}

type CreateTaskRequest = TaskRequestData

func (r TaskRequestData) Input() services.TaskInput {
	var budget *model.Budget
	if r.Budget != nil {
		b := r.Budget.Model()
		budget = &b
	}
	return services.TaskInput{
		Type:           r.Type,
		Title:          r.Title,
		Description:    r.Description,
		Budget:         budget,
		SkillsRequired: r.SkillsRequired,
		Location:       r.Location.Model(),
		Priority:       r.Priority,
		Urgency:        r.Urgency,
		Images:         r.Images,
	}
}

type CompleteTaskRequest struct {
	Proofs  []string `json:"proofs"`
	Comment string   `json:"comment"`
}

func (r CompleteTaskRequest) Input() services.CompletionInput {
	return services.CompletionInput{Proofs: r.Proofs, Comment: r.Comment}
}

type TaskStatusRequest struct {
	Status string `json:"status"`
	CompleteTaskRequest
}

type TaskListResponse struct {
	Tasks      []model.Task        `json:"tasks"`
	Pagination services.Pagination `json:"pagination"`
}

type TaskMatchesResponse struct {
	Count int                  `json:"count"`
	Tasks []services.TaskMatch `json:"tasks"`
}

type CandidatesResponse struct {
	TaskID     string               `json:"taskId"`
	Count      int                  `json:"count"`
	Candidates []services.Candidate `json:"candidates"`
}
