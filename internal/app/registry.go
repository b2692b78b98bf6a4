package app

import (
	"database/sql"

	"stafflink/internal/agency"
	"stafflink/internal/approval"
	"stafflink/internal/automation"
	"stafflink/internal/bootstrap"
	"stafflink/internal/client"
	"stafflink/internal/closure"
	"stafflink/internal/config"
	"stafflink/internal/escalation"
	"stafflink/internal/messaging/kafka"
	"stafflink/internal/notification"
	"stafflink/internal/shared/runlock"
	"stafflink/internal/shift"
	"stafflink/internal/shiftstatus"
	"stafflink/internal/staff"
	"stafflink/internal/timesheet"
	"stafflink/internal/timesheetbatch"
	"stafflink/internal/workflow"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// modules is the wired dependency graph shared by the API and worker
// processes.
type modules struct {
	runner    *automation.Runner
	evaluator approval.Evaluator
}

func registerModules(
	cfg *config.Config,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	logger *zap.Logger,
) *modules {
	loc := cfg.Location()

	// --- Repositories ---
	agencyRepo := agency.NewRepository(gormDB)
	shiftRepo := shift.NewRepository(gormDB)
	timesheetRepo := timesheet.NewRepository(gormDB)
	staffRepo := staff.NewRepository(gormDB)
	clientRepo := client.NewRepository(gormDB)
	workflowRepo := workflow.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Services ---
	workflowService := workflow.NewService(workflowRepo, logger)
	notifier := notification.NewOutboxNotifier(outboxRepo)
	evaluator := approval.NewEngine(approval.Dependencies{
		Timesheets: timesheetRepo,
		Shifts:     shiftRepo,
		Staff:      staffRepo,
		Agencies:   agencyRepo,
		Clients:    clientRepo,
		Workflows:  workflowService,
		Notifier:   notifier,
	}, approval.EngineConfig{
		AdminAlertEmail:  cfg.Notification.AdminAlertEmail,
		ApprovalLinkBase: cfg.Notification.ApprovalLinkBase,
		Location:         loc,
	}, logger)

	// --- Jobs ---
	statusJob := shiftstatus.NewJob(agencyRepo, shiftRepo, workflowService, loc, logger)
	escalationJob := escalation.NewJob(agencyRepo, shiftRepo, clientRepo, workflowService, notifier, logger)
	closureJob := closure.NewJob(shiftRepo, clientRepo, staffRepo, workflowService, loc, logger)
	batchJob := timesheetbatch.NewJob(timesheetRepo, agencyRepo, staffRepo, shiftRepo, evaluator, logger)

	var locker runlock.Locker = runlock.Noop{}
	if rdb != nil {
		locker = runlock.NewRedisLocker(rdb)
	}
	runner := automation.NewRunner(locker, bootstrap.NewStdoutAuditLogger(logger), logger)
	runner.Register(
		automation.NewJob(shiftstatus.Name, shiftstatus.LockTTL, statusJob.Run),
		automation.NewJob(escalation.Name, escalation.LockTTL, escalationJob.Run),
		automation.NewJob(closure.Name, closure.LockTTL, closureJob.Run),
		automation.NewJob(timesheetbatch.Name, timesheetbatch.LockTTL, batchJob.Run),
	)

	return &modules{runner: runner, evaluator: evaluator}
}
