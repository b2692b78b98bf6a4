package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stafflink/internal/workflow"
	workflowerrors "stafflink/internal/workflow/errors"
	workflowMock "stafflink/internal/workflow/mock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type serviceDeps struct {
	service workflow.Service
	repo    *workflowMock.MockRepository
}

func setupServiceTest(t *testing.T) *serviceDeps {
	ctrl := gomock.NewController(t)
	repo := workflowMock.NewMockRepository(ctrl)
	return &serviceDeps{
		service: workflow.NewService(repo),
		repo:    repo,
	}
}

func escalationDraft() workflow.Draft {
	now := time.Date(2025, 3, 10, 9, 20, 0, 0, time.UTC)
	return workflow.Draft{
		AgencyID:        uuid.New(),
		Type:            workflow.TypeUnfilledUrgentShift,
		Priority:        workflow.PriorityCritical,
		Title:           "URGENT: healthcare assistant needed at Oakview",
		EntityType:      workflow.EntityShift,
		EntityID:        uuid.New(),
		Deadline:        workflow.DeadlineIn(now, time.Hour),
		EscalationCount: 1,
	}
}

func TestWorkflowService_Raise(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		deps := setupServiceTest(t)
		d := escalationDraft()

		deps.repo.EXPECT().
			HasOpen(ctx, workflow.TypeUnfilledUrgentShift, workflow.EntityShift, d.EntityID).
			Return(false, nil)
		deps.repo.EXPECT().
			Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, wf *workflow.AdminWorkflow) error {
				assert.Equal(t, workflow.StatusPending, wf.Status)
				assert.True(t, wf.AutoCreated)
				assert.Equal(t, 1, wf.EscalationCount)
				assert.Equal(t, d.EntityID, wf.RelatedEntityID)
				assert.NotEqual(t, uuid.Nil, wf.ID)
				return nil
			})

		wf, err := deps.service.Raise(ctx, d)

		require.NoError(t, err)
		assert.Equal(t, workflow.PriorityCritical, wf.Priority)
		assert.Equal(t, workflow.EntityShift, wf.RelatedEntityType)
	})

	t.Run("open workflow found", func(t *testing.T) {
		deps := setupServiceTest(t)
		d := escalationDraft()

		deps.repo.EXPECT().HasOpen(ctx, d.Type, d.EntityType, d.EntityID).Return(true, nil)

		wf, err := deps.service.Raise(ctx, d)

		assert.Nil(t, wf)
		assert.ErrorIs(t, err, workflowerrors.ErrOpenWorkflowExists)
	})

	t.Run("unique index race maps to open workflow", func(t *testing.T) {
		deps := setupServiceTest(t)
		d := escalationDraft()

		deps.repo.EXPECT().HasOpen(ctx, d.Type, d.EntityType, d.EntityID).Return(false, nil)
		deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "uq_admin_workflows_open_entity",
		})

		_, err := deps.service.Raise(ctx, d)

		assert.ErrorIs(t, err, workflowerrors.ErrOpenWorkflowExists)
	})

	t.Run("other store error is returned as is", func(t *testing.T) {
		deps := setupServiceTest(t)
		d := escalationDraft()
		storeErr := errors.New("connection reset")

		deps.repo.EXPECT().HasOpen(ctx, d.Type, d.EntityType, d.EntityID).Return(false, nil)
		deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(storeErr)

		_, err := deps.service.Raise(ctx, d)

		assert.ErrorIs(t, err, storeErr)
		assert.NotErrorIs(t, err, workflowerrors.ErrOpenWorkflowExists)
	})

	t.Run("default priority", func(t *testing.T) {
		deps := setupServiceTest(t)
		d := escalationDraft()
		d.Priority = ""

		deps.repo.EXPECT().HasOpen(ctx, d.Type, d.EntityType, d.EntityID).Return(false, nil)
		deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

		wf, err := deps.service.Raise(ctx, d)

		require.NoError(t, err)
		assert.Equal(t, workflow.PriorityMedium, wf.Priority)
	})

	t.Run("invalid draft", func(t *testing.T) {
		deps := setupServiceTest(t)

		_, err := deps.service.Raise(ctx, workflow.Draft{Type: workflow.TypeOther})

		assert.ErrorIs(t, err, workflowerrors.ErrInvalidDraft)
	})
}
