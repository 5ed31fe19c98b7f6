package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
)

type Profile struct {
	UID      string `gorm:"primaryKey;size:128" json:"uid" bson:"_id"`
	Name     string `gorm:"size:120;not null" json:"name" bson:"name"`
	Email    string `gorm:"size:254" json:"email,omitempty" bson:"email,omitempty"`
	Phone    string `gorm:"size:32" json:"phone,omitempty" bson:"phone,omitempty"`
	PhotoURL string `json:"photoURL,omitempty" bson:"photoURL,omitempty"`

	Roles datatypes.JSONSlice[constants.Role] `json:"roles" bson:"roles"`
	// Tasker is derived from Roles so stores can index candidate eligibility.
	Tasker bool `gorm:"not null;default:false;index" json:"-" bson:"tasker"`

	Location Location                    `gorm:"embedded;embeddedPrefix:location_" json:"location" bson:"location"`
	Skills   datatypes.JSONSlice[string] `json:"skills" bson:"skills"`

	Rating         float64 `gorm:"not null;default:0" json:"rating" bson:"rating"`
	ReviewCount    int     `gorm:"not null;default:0" json:"reviewCount" bson:"reviewCount"`
	TotalTasks     int     `gorm:"not null;default:0" json:"totalTasks" bson:"totalTasks"`
	CompletedTasks int     `gorm:"not null;default:0" json:"completedTasks" bson:"completedTasks"`

	CreatedAt time.Time `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// PerformsTasks reports whether any role makes the profile a match candidate.
func (p Profile) PerformsTasks() bool {
	for _, r := range p.Roles {
		if r.Performs() {
			return true
		}
	}
	return false
}

func (p Profile) Clone() Profile {
	p.Roles = cloneSlice(p.Roles)
	p.Skills = cloneSlice(p.Skills)
	p.Location = p.Location.clone()
	return p
}

// ProfileCounter names an advisory per-profile counter.
type ProfileCounter string

const (
	CounterTotalTasks     ProfileCounter = "total_tasks"
	CounterCompletedTasks ProfileCounter = "completed_tasks"
)
