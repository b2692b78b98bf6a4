package workflow

import (
	"context"

	"stafflink/internal/shared/contextutil"
	workflowerrors "stafflink/internal/workflow/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:generate mockgen -source=workflow_service.go -destination=mock/workflow_service_mock.go -package=mock
type Service interface {
	// Raise creates a pending, auto-created workflow unless one of the same
	// type is already open for the entity, in which case it returns
	// workflowerrors.ErrOpenWorkflowExists.
	Raise(ctx context.Context, d Draft) (*AdminWorkflow, error)
	CountOpenForEntity(ctx context.Context, entityType string, entityID uuid.UUID) (int64, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("workflow.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("workflow.service")
	}
	return &service{repo: repo, logger: l}
}

func (s *service) Raise(ctx context.Context, d Draft) (*AdminWorkflow, error) {
	if d.AgencyID == uuid.Nil || d.EntityID == uuid.Nil || d.Type == "" || d.EntityType == "" || d.Title == "" {
		return nil, workflowerrors.ErrInvalidDraft
	}
	log := contextutil.GetLogger(ctx, s.logger)

	// read check right before the insert; the partial unique index covers
	// the remaining race window
	open, err := s.repo.HasOpen(ctx, d.Type, d.EntityType, d.EntityID)
	if err != nil {
		log.Error("check open workflow failed",
			zap.String("type", d.Type),
			zap.String("entity_id", d.EntityID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if open {
		log.Debug("open workflow already exists, skipping",
			zap.String("type", d.Type),
			zap.String("entity_id", d.EntityID.String()),
		)
		return nil, workflowerrors.ErrOpenWorkflowExists
	}

	priority := d.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	wf := &AdminWorkflow{
		ID:                uuid.New(),
		AgencyID:          d.AgencyID,
		Type:              d.Type,
		Priority:          priority,
		Status:            StatusPending,
		Title:             d.Title,
		Description:       d.Description,
		RelatedEntityType: d.EntityType,
		RelatedEntityID:   d.EntityID,
		Deadline:          d.Deadline,
		AutoCreated:       true,
		EscalationCount:   d.EscalationCount,
	}

	if err := s.repo.Create(ctx, wf); err != nil {
		mapped := mapRepositoryError(err)
		log.Warn("create workflow failed",
			zap.String("type", d.Type),
			zap.String("entity_id", d.EntityID.String()),
			zap.Error(mapped),
		)
		return nil, mapped
	}

	log.Info("workflow raised",
		zap.String("workflow_id", wf.ID.String()),
		zap.String("type", wf.Type),
		zap.String("priority", wf.Priority),
		zap.String("agency_id", wf.AgencyID.String()),
		zap.String("entity_id", wf.RelatedEntityID.String()),
	)
	return wf, nil
}

func (s *service) CountOpenForEntity(ctx context.Context, entityType string, entityID uuid.UUID) (int64, error) {
	return s.repo.CountOpenForEntity(ctx, entityType, entityID)
}
