// Package kv implements the repositories on top of store.Table, one table per
// entity. Mentee notes share the mentee table as children of the mentee
// partition.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/retry"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

const (
	IndexByBuddy          = "byBuddy"
	IndexByOwner          = "byOwner"
	IndexBySearchableName = "bySearchableName"
)

var (
	UsersSchema     = store.Schema{Name: "users"}
	PasswordsSchema = store.Schema{Name: "passwords"}
	MenteesSchema   = store.Schema{Name: "mentees", Indexes: map[string]string{IndexByBuddy: "buddyId"}}
	AssetsSchema    = store.Schema{Name: "assets", Indexes: map[string]string{
		IndexByOwner:          "ownerId",
		IndexBySearchableName: "searchableName",
	}}
	FAQsSchema = store.Schema{Name: "faqs"}
)

// Schemas lists every table the repositories need.
func Schemas() []store.Schema {
	return []store.Schema{UsersSchema, PasswordsSchema, MenteesSchema, AssetsSchema, FAQsSchema}
}

// TableFactory opens the backend table for a schema.
type TableFactory func(schema store.Schema) (store.Table, error)

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	NewTable   TableFactory
	Retry      retry.Config
	Files      repositories.FileRemover
	Logger     *slog.Logger
	BcryptCost int

	// Optional hooks for the backing connection.
	Ping  func(ctx context.Context) error
	Close func() error

	// Overridable in tests.
	Now   func() time.Time
	NewID func() string
}

type kvRepository struct {
	config RepositoryConfig

	user   *userKV
	mentee *menteeKV
	note   *noteKV
	asset  *assetKV
	faq    *faqKV
}

// NewRepositoryManager returns a manager whose repository is usable after
// Initialize.
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	return &kvRepository{config: config}
}

// NewRepository opens every table and returns the initialized repository.
func NewRepository(ctx context.Context, config RepositoryConfig) (repositories.Repository, error) {
	m := NewRepositoryManager(config)
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	return m.GetRepository(), nil
}

func (r *kvRepository) Initialize(ctx context.Context) error {
	if r.config.NewTable == nil {
		return errors.New("kv: no table factory configured")
	}
	tables := make(map[string]store.Table, len(Schemas()))
	for _, schema := range Schemas() {
		t, err := r.config.NewTable(schema)
		if err != nil {
			return fmt.Errorf("kv: open table %s: %w", schema.Name, err)
		}
		tables[schema.Name] = store.WithRetry(t, r.config.Retry)
	}

	c := r.config
	r.user = &userKV{
		users:     tables[UsersSchema.Name],
		passwords: tables[PasswordsSchema.Name],
		logger:    c.Logger,
		now:       c.Now,
		cost:      c.BcryptCost,
	}
	r.mentee = &menteeKV{table: tables[MenteesSchema.Name], logger: c.Logger, now: c.Now, newID: c.NewID}
	r.note = &noteKV{table: tables[MenteesSchema.Name], now: c.Now, newID: c.NewID}
	r.asset = &assetKV{table: tables[AssetsSchema.Name], files: c.Files, logger: c.Logger, now: c.Now, newID: c.NewID}
	r.faq = &faqKV{table: tables[FAQsSchema.Name], now: c.Now, newID: c.NewID}
	return nil
}

func (r *kvRepository) GetRepository() repositories.Repository { return r }

func (r *kvRepository) HealthCheck(ctx context.Context) error { return r.Ping(ctx) }

func (r *kvRepository) Shutdown(ctx context.Context) error { return r.Close() }

func (r *kvRepository) User() repositories.UserRepository     { return r.user }
func (r *kvRepository) Mentee() repositories.MenteeRepository { return r.mentee }
func (r *kvRepository) Note() repositories.NoteRepository     { return r.note }
func (r *kvRepository) Asset() repositories.AssetRepository   { return r.asset }
func (r *kvRepository) FAQ() repositories.FAQRepository       { return r.faq }

func (r *kvRepository) Ping(ctx context.Context) error {
	if r.config.Ping == nil {
		return nil
	}
	return r.config.Ping(ctx)
}

func (r *kvRepository) Close() error {
	if r.config.Close == nil {
		return nil
	}
	return r.config.Close()
}
