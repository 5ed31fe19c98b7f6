package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
)

// TaskDetails are the descriptive fields a creator may edit while a task is open.
type TaskDetails struct {
	Type           string                      `gorm:"size:32;not null;index" json:"type" bson:"type"`
	Title          string                      `gorm:"size:200;not null" json:"title" bson:"title"`
	Description    string                      `gorm:"size:2000;not null" json:"description" bson:"description"`
	Budget         Budget                      `gorm:"embedded;embeddedPrefix:budget_" json:"budget" bson:"budget"`
	SkillsRequired datatypes.JSONSlice[string] `json:"skillsRequired" bson:"skillsRequired"`
	Location       Location                    `gorm:"embedded;embeddedPrefix:location_" json:"location" bson:"location"`
	Priority       constants.Priority          `gorm:"type:varchar(10);not null;default:medium" json:"priority" bson:"priority"`
	Urgency        constants.Urgency           `gorm:"type:varchar(10);not null;default:normal" json:"urgency" bson:"urgency"`
	Images         datatypes.JSONSlice[string] `json:"images,omitempty" bson:"images,omitempty"`
}

// Completion is populated only on the transition into completed.
type Completion struct {
	Proofs      datatypes.JSONSlice[string] `json:"proofs,omitempty" bson:"proofs,omitempty"`
	Comment     string                      `gorm:"size:2000" json:"comment,omitempty" bson:"comment,omitempty"`
	CompletedAt *time.Time                  `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

type Task struct {
	ID          string `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	CreatorUID  string `gorm:"size:128;not null;index" json:"creatorUid" bson:"creatorUid"`
	AssigneeUID string `gorm:"size:128;index" json:"assigneeUid,omitempty" bson:"assigneeUid,omitempty"`

	TaskDetails `bson:",inline"`

	Status     constants.TaskStatus `gorm:"type:varchar(20);not null;index" json:"status" bson:"status"`
	Completion Completion           `gorm:"embedded;embeddedPrefix:completion_" json:"completion" bson:"completion"`

	ViewCount        int `gorm:"not null;default:0" json:"viewCount" bson:"viewCount"`
	ApplicationCount int `gorm:"not null;default:0" json:"applicationCount" bson:"applicationCount"`

	Version   uint       `gorm:"not null;default:1" json:"version" bson:"version"`
	ExpiresAt *time.Time `gorm:"index" json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy so stores never hand out aliased slices.
func (t Task) Clone() Task {
	t.SkillsRequired = cloneSlice(t.SkillsRequired)
	t.Images = cloneSlice(t.Images)
	t.Completion.Proofs = cloneSlice(t.Completion.Proofs)
	t.Location = t.Location.clone()
	if t.ExpiresAt != nil {
		at := *t.ExpiresAt
		t.ExpiresAt = &at
	}
	if t.Completion.CompletedAt != nil {
		at := *t.Completion.CompletedAt
		t.Completion.CompletedAt = &at
	}
	return t
}

func (l Location) clone() Location {
	if l.Lat != nil {
		lat := *l.Lat
		l.Lat = &lat
	}
	if l.Lng != nil {
		lng := *l.Lng
		l.Lng = &lng
	}
	return l
}

func cloneSlice[S ~[]E, E any](in S) S {
	if in == nil {
		return nil
	}
	out := make(S, len(in))
	copy(out, in)
	return out
}
