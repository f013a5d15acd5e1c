package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/cache"
	"github.com/ibuddy-app/ibuddy-service/internal/email"
	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/storage"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Session        SessionConfig
	StatusPolicy   models.TransitionPolicy
	DownloadURLTTL time.Duration
}

// Dependencies are the collaborators shared by every service.
type Dependencies struct {
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator
	Events    events.Publisher
	Mailer    email.Sender
	Files     *storage.Registry
	// Sessions caches authenticated users. Optional.
	Sessions *cache.Helper
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	logger *slog.Logger
	config ServiceManagerConfig

	authService   AuthService
	userService   UserService
	menteeService MenteeService
	assetService  AssetService
	faqService    FAQService
	mailService   MailService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &serviceManager{
		deps:   deps,
		logger: deps.Logger,
		config: config,
	}
}

// Validate checks the configuration before services are built.
func (config *ServiceManagerConfig) Validate() error {
	var errs []error
	if len(config.Session.Secret) < 32 {
		errs = append(errs, errors.New("session secret must be at least 32 bytes"))
	}
	if config.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if config.DownloadURLTTL < 0 {
		errs = append(errs, errors.New("download url ttl cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.config.Validate(); err != nil {
		return err
	}
	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) initializeServices() error {
	d := sm.deps
	var missing []string
	if d.Repo == nil {
		missing = append(missing, "repository")
	}
	if d.Validator == nil {
		missing = append(missing, "validator")
	}
	if d.Mailer == nil {
		missing = append(missing, "mailer")
	}
	if d.Files == nil {
		missing = append(missing, "file storage")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing dependencies: %v", missing)
	}

	sm.authService = NewAuthService(d.Repo, d.Logger, d.Validator, d.Events, sm.config.Session, d.Sessions)
	sm.userService = NewUserService(d.Repo, d.Logger, d.Validator, d.Events, d.Sessions)
	sm.menteeService = NewMenteeService(d.Repo, d.Logger, d.Validator, d.Events, sm.config.StatusPolicy)
	sm.assetService = NewAssetService(d.Repo, d.Logger, d.Validator, d.Files, sm.config.DownloadURLTTL)
	sm.faqService = NewFAQService(d.Repo, d.Logger, d.Validator)
	sm.mailService = NewMailService(d.Repo, d.Logger, d.Validator, d.Events, d.Mailer, sm.assetService)
	sm.logger.Info("Services initialized", "status_policy", sm.statusPolicyName())
	return nil
}

func (sm *serviceManager) statusPolicyName() string {
	if sm.config.StatusPolicy == nil {
		return models.PermissiveTransitions.Name()
	}
	return sm.config.StatusPolicy.Name()
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Service getters
func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.authService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.userService
}

func (sm *serviceManager) Mentee() MenteeService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.menteeService
}

func (sm *serviceManager) Asset() AssetService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.assetService
}

func (sm *serviceManager) FAQ() FAQService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.faqService
}

func (sm *serviceManager) Mail() MailService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.mailService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
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

	sm.logger.Info("Shutting down service manager")

	var errs []error
	if sm.deps.Events != nil {
		if err := sm.deps.Events.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
			errs = append(errs, err)
		}
	}
	if err := sm.deps.Repo.Close(); err != nil {
		sm.logger.Error("Failed to close repository", "error", err)
		errs = append(errs, err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return errors.Join(errs...)
}
