package dto

import (
	"time"

	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

type LocationData struct {
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Country    string   `json:"country"`
	PostalCode string   `json:"postalCode"`
}

func (l *LocationData) Model() *model.Location {
	if l == nil {
		return nil
	}
	return &model.Location{
		Lat:        l.Lat,
		Lng:        l.Lng,
		Address:    l.Address,
		City:       l.City,
		State:      l.State,
		Country:    l.Country,
		PostalCode: l.PostalCode,
	}
}

type BudgetData struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Negotiable bool    `json:"negotiable"`
}

func (b BudgetData) Model() model.Budget {
	return model.Budget{Amount: b.Amount, Currency: b.Currency, Negotiable: b.Negotiable}
}

type ScheduleData struct {
	StartAt  *time.Time `json:"startAt"`
	EndAt    *time.Time `json:"endAt"`
	Flexible bool       `json:"flexible"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
