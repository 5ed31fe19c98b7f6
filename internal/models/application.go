package model

import (
	"time"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
)

// Application is one tasker's bid on one task. The partial unique index keeps
// a single non-withdrawn application per (task, applicant).
type Application struct {
	ID           string `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	TaskID       string `gorm:"size:36;not null;index;uniqueIndex:idx_applications_active,where:status <> 'withdrawn'" json:"taskId" bson:"taskId"`
	ApplicantUID string `gorm:"size:128;not null;index;uniqueIndex:idx_applications_active,where:status <> 'withdrawn'" json:"applicantUid" bson:"applicantUid"`

	ProposedBudget   Budget   `gorm:"embedded;embeddedPrefix:proposed_budget_" json:"proposedBudget" bson:"proposedBudget"`
	ProposedSchedule Schedule `gorm:"embedded;embeddedPrefix:proposed_" json:"proposedSchedule" bson:"proposedSchedule"`
	CoverLetter      string   `gorm:"size:1000" json:"coverLetter,omitempty" bson:"coverLetter,omitempty"`

	Status   constants.ApplicationStatus `gorm:"type:varchar(20);not null;index" json:"status" bson:"status"`
	Messages []ApplicationMessage        `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"messages" bson:"messages"`

	CreatedAt time.Time `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ApplicationMessage is an append-only note scoped to one application.
type ApplicationMessage struct {
	ID            uint      `gorm:"primaryKey" json:"-" bson:"-"`
	ApplicationID string    `gorm:"size:36;not null;index" json:"-" bson:"-"`
	SenderUID     string    `gorm:"size:128;not null" json:"senderUid" bson:"senderUid"`
	Text          string    `gorm:"size:1000;not null" json:"text" bson:"text"`
	CreatedAt     time.Time `json:"timestamp" bson:"timestamp"`
}

func (a Application) Clone() Application {
	a.Messages = cloneSlice(a.Messages)
	return a
}
