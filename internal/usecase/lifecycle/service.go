package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
	"github.com/nolancloud/ncp/internal/impls"
)

// Service orchestrates container lifecycle commands as dual writes:
// runtime first, then the persisted instance record. When the two
// disagree the documented partial-failure behavior applies; the
// reconciliation sweep re-converges persisted state afterwards.
type Service struct {
	runtime   impls.ContainerRuntime
	instances impls.InstanceStore
	logger    *slog.Logger
}

func NewService(runtime impls.ContainerRuntime, instances impls.InstanceStore, logger *slog.Logger) *Service {
	return &Service{runtime: runtime, instances: instances, logger: logger}
}

// CreateInput carries the container creation request. Image, name and
// command pass through to the runtime verbatim.
type CreateInput struct {
	Image string
	Name  string
	Cmd   []string
}

// List merges the user's persisted instances with the live runtime view.
// An instance whose runtime resource is gone shows up as
// "Stopped (or Missing)". When all is false only running containers are
// returned.
func (s *Service) List(ctx context.Context, userID string, all bool) ([]domain.ContainerSummary, error) {
	insts, err := s.instances.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return []domain.ContainerSummary{}, nil
	}

	live, err := s.runtime.List(ctx, true)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ContainerSummary, 0, len(insts))
	for _, inst := range insts {
		summary := domain.ContainerSummary{
			ID:          inst.ID,
			ContainerID: inst.ContainerID,
			Name:        inst.Name,
			Image:       inst.Image,
			Status:      "Stopped (or Missing)",
			State:       "exited",
			Created:     inst.CreatedAt,
		}
		if c := matchContainer(live, &inst); c != nil {
			summary.Status = c.Status
			summary.State = c.State
		}
		if !all && summary.State != "running" {
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

func matchContainer(live []domain.RuntimeContainer, inst *domain.Instance) *domain.RuntimeContainer {
	for i := range live {
		if strings.HasPrefix(live[i].ID, inst.ContainerID) {
			return &live[i]
		}
		for _, name := range live[i].Names {
			if name == "/"+inst.Name {
				return &live[i]
			}
		}
	}
	return nil
}

// Create provisions the runtime container first, then persists the
// instance record with status "created". A store failure after the
// runtime write leaves an orphaned container; it is logged with the
// runtime id rather than rolled back.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.Instance, error) {
	if strings.TrimSpace(in.Image) == "" {
		return nil, domainerrors.ValidationError{Reason: "image is required"}
	}

	created, err := s.runtime.Create(ctx, domain.CreateSpec{
		Image: in.Image,
		Name:  in.Name,
		Cmd:   in.Cmd,
	})
	if err != nil {
		return nil, err
	}

	name := in.Name
	if name == "" {
		name = created.Name
	}

	inst := &domain.Instance{
		ID:          uuid.NewString(),
		ContainerID: created.ID,
		Name:        name,
		Image:       in.Image,
		Status:      domain.StatusCreated,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.instances.Create(ctx, inst); err != nil {
		s.logger.Error("instance record write failed, runtime container orphaned",
			"container_id", created.ID,
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("instance created",
		"instance_id", inst.ID,
		"container_id", inst.ContainerID,
		"image", inst.Image,
		"user_id", userID,
	)
	return inst, nil
}

// Start runs the runtime command and, only on success, records the
// commanded target status.
func (s *Service) Start(ctx context.Context, userID, instanceID string) error {
	return s.command(ctx, userID, instanceID, s.runtime.Start, domain.StatusRunning)
}

func (s *Service) Stop(ctx context.Context, userID, instanceID string) error {
	return s.command(ctx, userID, instanceID, s.runtime.Stop, domain.StatusExited)
}

func (s *Service) Restart(ctx context.Context, userID, instanceID string) error {
	return s.command(ctx, userID, instanceID, s.runtime.Restart, domain.StatusRunning)
}

func (s *Service) command(ctx context.Context, userID, instanceID string, run func(context.Context, string) error, target domain.InstanceStatus) error {
	inst, err := s.guard(ctx, userID, instanceID)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return domainerrors.NotFoundError{Resource: "instance"}
	}

	if err := run(ctx, inst.ContainerID); err != nil {
		// Persisted status stays put; the next reconciliation tick will
		// converge it if the runtime actually moved.
		return err
	}

	if err := s.instances.UpdateStatus(ctx, inst.ID, target); err != nil {
		return err
	}
	s.logger.Info("instance status commanded",
		"instance_id", inst.ID,
		"status", target,
		"user_id", userID,
	)
	return nil
}

// Remove deletes the runtime container and then the instance record.
// A runtime resource that is already gone counts as success, so the
// remove is idempotent; any other runtime failure aborts before the
// record is touched.
func (s *Service) Remove(ctx context.Context, userID, instanceID string, force bool) error {
	inst, err := s.guard(ctx, userID, instanceID)
	if err != nil {
		return err
	}

	if err := s.runtime.Remove(ctx, inst.ContainerID, force); err != nil {
		if !domainerrors.IsNotFound(err) {
			return err
		}
		s.logger.Warn("container already gone from runtime, removing record only",
			"instance_id", inst.ID,
			"container_id", inst.ContainerID,
		)
	}

	if err := s.instances.Delete(ctx, inst.ID); err != nil {
		return err
	}
	s.logger.Info("instance removed", "instance_id", inst.ID, "user_id", userID)
	return nil
}

// Stats returns the runtime's point-in-time usage snapshot unmodified.
func (s *Service) Stats(ctx context.Context, userID, instanceID string) (domain.StatsSnapshot, error) {
	inst, err := s.guard(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status.Terminal() {
		return nil, domainerrors.NotFoundError{Resource: "instance"}
	}
	return s.runtime.Stats(ctx, inst.ContainerID)
}

// guard loads the instance and verifies ownership. A missing record and
// a foreign record produce the same denial so existence does not leak.
func (s *Service) guard(ctx context.Context, userID, instanceID string) (*domain.Instance, error) {
	inst, err := s.instances.Get(ctx, instanceID)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, domainerrors.PermissionDeniedError{Reason: "container not found or access denied"}
		}
		return nil, err
	}
	if err := domain.VerifyOwner(userID, inst.UserID); err != nil {
		return nil, domainerrors.PermissionDeniedError{Reason: "container not found or access denied"}
	}
	return inst, nil
}
