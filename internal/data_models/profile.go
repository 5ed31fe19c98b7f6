package dto

import "github.com/TrizenVenturesLLP/task-connect-relay/internal/services"

type ProfileRequest struct {
	Name     *string       `json:"name"`
	Email    *string       `json:"email"`
	Phone    *string       `json:"phone"`
	PhotoURL *string       `json:"photoURL"`
	Roles    []string      `json:"roles"`
	Location *LocationData `json:"location"`
	Skills   []string      `json:"skills"`
}

func (r ProfileRequest) Input() services.ProfileInput {
	return services.ProfileInput{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		PhotoURL: r.PhotoURL,
		Roles:    r.Roles,
		Location: r.Location.Model(),
		Skills:   r.Skills,
	}
}
