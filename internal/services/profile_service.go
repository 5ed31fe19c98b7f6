package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

type ProfileService struct {
	*env
}

// ProfileInput is a partial update; nil fields keep their stored value.
type ProfileInput struct {
	Name     *string
	Email    *string
	Phone    *string
	PhotoURL *string
	Roles    []string
	Location *model.Location
	Skills   []string
}

func (s *ProfileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	return s.store.Profiles().FindByUID(ctx, uid)
}

// Save creates the profile on first call and merges the input afterwards.
func (s *ProfileService) Save(ctx context.Context, uid string, in ProfileInput) (*model.Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	now := s.clock()
	profile, err := s.store.Profiles().FindByUID(ctx, uid)
	switch {
	case errors.Is(err, apperrors.ErrProfileNotFound):
		profile = &model.Profile{
			UID:       uid,
			Roles:     []constants.Role{constants.RoleBoth},
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	}

	if err := applyProfileInput(profile, in); err != nil {
		return nil, err
	}
	if profile.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	profile.Tasker = profile.PerformsTasks()
	profile.UpdatedAt = now

	if err := s.store.Profiles().Save(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"uid":    uid,
		"tasker": profile.Tasker,
	}).Debug("profile saved")

	return profile, nil
}

func applyProfileInput(p *model.Profile, in ProfileInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateLength("name", name, 120); err != nil {
			return err
		}
		p.Name = name
	}
	if in.Email != nil {
		p.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.PhotoURL != nil {
		p.PhotoURL = strings.TrimSpace(*in.PhotoURL)
	}

	if in.Roles != nil {
		roles, err := parseRoles(in.Roles)
		if err != nil {
			return err
		}
		p.Roles = roles
	}

	if in.Location != nil {
		if err := validateLocation(*in.Location, false); err != nil {
			return err
		}
		p.Location = *in.Location
	}

	if in.Skills != nil {
		skills, err := normalizeSkills(in.Skills, maxProfileSkills)
		if err != nil {
			return err
		}
		p.Skills = skills
	}
	return nil
}

func parseRoles(raw []string) ([]constants.Role, error) {
	if len(raw) == 0 {
		return nil, apperrors.Validation("at least one role is required")
	}
	roles := make([]constants.Role, 0, len(raw))
	seen := make(map[constants.Role]bool, len(raw))
	for _, r := range raw {
		role, err := constants.ParseRole(strings.ToLower(strings.TrimSpace(r)))
		if err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles, nil
}
