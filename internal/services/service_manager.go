package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/ngbao12/GoPass-sub000/internal/session"
	"github.com/ngbao12/GoPass-sub000/internal/validator"
	"gorm.io/gorm"
)

// ServiceManagerDeps holds everything the services need to be constructed.
type ServiceManagerDeps struct {
	DB        *gorm.DB
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator
	Snapshots *session.SnapshotStore
	Publisher events.EventPublisher

	// EssayScorer is optional; when nil, essay suggestions fall back to
	// similarity against the model answer.
	EssayScorer EssayScorer
}

// serviceManager implements ServiceManager.
type serviceManager struct {
	deps ServiceManagerDeps

	submissionService SubmissionService
	gradingService    GradingService
	contestService    ContestService
	exportService     ExportService

	shutdown bool
	mu       sync.RWMutex
}

// NewServiceManager wires all services. Contest accumulation is constructed
// first so submission finalize can call into it.
func NewServiceManager(deps ServiceManagerDeps) (ServiceManager, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopEventPublisher{}
	}

	sm := &serviceManager{deps: deps}

	sm.contestService = NewContestService(deps.Repo, deps.Logger, deps.Publisher)
	sm.submissionService = NewSubmissionService(
		deps.Repo, deps.DB, deps.Logger, deps.Validator,
		deps.Snapshots, sm.contestService, deps.Publisher,
	)
	sm.gradingService = NewManualGradingService(deps.Repo, deps.Logger, deps.Publisher, deps.EssayScorer)
	sm.exportService = NewExportService(deps.Repo, deps.Logger)

	deps.Logger.Info("Service manager initialized")
	return sm, nil
}

func (sm *serviceManager) Submission() SubmissionService {
	return sm.submissionService
}

func (sm *serviceManager) Grading() GradingService {
	return sm.gradingService
}

func (sm *serviceManager) Contest() ContestService {
	return sm.contestService
}

func (sm *serviceManager) Export() ExportService {
	return sm.exportService
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if err := sm.deps.Publisher.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close event publisher", "error", err)
	}
	if err := sm.deps.Repo.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return nil
}
