package model

import (
	"time"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
)

// Location is an optional geographic point plus free-text address fields.
// Lat and Lng are nil until the owner supplies coordinates.
type Location struct {
	Lat        *float64 `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty" bson:"lng,omitempty"`
	Address    string   `json:"address,omitempty" bson:"address,omitempty"`
	City       string   `gorm:"index" json:"city,omitempty" bson:"city,omitempty"`
	State      string   `json:"state,omitempty" bson:"state,omitempty"`
	Country    string   `json:"country,omitempty" bson:"country,omitempty"`
	PostalCode string   `json:"postalCode,omitempty" bson:"postalCode,omitempty"`
}

func NewLocation(p geo.Point) Location {
	lat, lng := p.Lat, p.Lng
	return Location{Lat: &lat, Lng: &lng}
}

// Point returns the coordinates when both are present.
func (l Location) Point() (geo.Point, bool) {
	if l.Lat == nil || l.Lng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *l.Lat, Lng: *l.Lng}, true
}

type Budget struct {
	Amount     float64 `json:"amount" bson:"amount"`
	Currency   string  `gorm:"size:3" json:"currency" bson:"currency"`
	Negotiable bool    `json:"negotiable" bson:"negotiable"`
}

// Schedule is an applicant's proposed time window.
type Schedule struct {
	StartAt  *time.Time `json:"startAt,omitempty" bson:"startAt,omitempty"`
	EndAt    *time.Time `json:"endAt,omitempty" bson:"endAt,omitempty"`
	Flexible bool       `json:"flexible" bson:"flexible"`
}
