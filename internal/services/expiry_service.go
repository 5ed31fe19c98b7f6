package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

// ExpiryService moves open tasks past their expiry to expired. It runs out of
// the request path, from the expire command.
type ExpiryService struct {
	*env
}

// Run sweeps every interval until ctx is done.
func (s *ExpiryService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return apperrors.Validation("expiry interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("expiry sweep failed")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.logger.Info("expiry loop stopped")
			return nil
		}
	}
}

// SweepOnce expires due tasks in batches until none remain and returns how
// many it expired. A task assigned between the read and the write is skipped.
func (s *ExpiryService) SweepOnce(ctx context.Context) (int, error) {
	batch := s.cfg.ExpiryBatchSize
	if batch <= 0 {
		return 0, apperrors.ErrInvalidLimit
	}

	expired := 0
	for {
		now := s.clock()
		due := repository.TaskCondition{Statuses: openOnly, ExpiresBefore: &now}
		tasks, err := s.store.Tasks().List(ctx, repository.TaskFilter{
			Statuses:      due.Statuses,
			ExpiresBefore: due.ExpiresBefore,
			Limit:         batch,
		})
		if err != nil {
			return expired, err
		}

		moved := 0
		for _, task := range tasks {
			ok, err := s.expire(ctx, task.ID, due)
			if err != nil {
				return expired, err
			}
			if ok {
				moved++
			}
		}
		expired += moved

		if len(tasks) < batch || moved == 0 {
			break
		}
	}

	s.metrics.RecordExpired(expired)
	if expired > 0 {
		s.logger.WithField("expired", expired).Info("expiry sweep finished")
	}
	return expired, nil
}

func (s *ExpiryService) expire(ctx context.Context, taskID string, due repository.TaskCondition) (bool, error) {
	status := constants.StatusExpired
	_, err := s.store.Tasks().UpdateIf(ctx, taskID, due, repository.TaskUpdate{
		Status:    &status,
		UpdatedAt: s.clock(),
	})
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrOptimisticLock), errors.Is(err, apperrors.ErrTaskNotFound):
		s.logger.WithField("task_id", taskID).Debug("task left the open state before expiry")
		return false, nil
	default:
		return false, err
	}

	s.metrics.RecordTransition(string(constants.StatusOpen), string(status))
	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"from":    constants.StatusOpen,
		"to":      status,
	}).Info("task expired")

	s.rejectSiblings(ctx, taskID, "")
	return true, nil
}
