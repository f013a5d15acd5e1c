package pkg

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ibuddy-app/ibuddy-service/internal/config"
	"github.com/ibuddy-app/ibuddy-service/internal/email"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories/kv"
	"github.com/ibuddy-app/ibuddy-service/internal/store/redisstore"
)

func testInfrastructure(t *testing.T) *Infrastructure {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &Infrastructure{
		Config: &config.Config{
			Store:   config.StoreConfig{Driver: config.StoreRedis},
			Redis:   config.RedisConfig{Namespace: "ibuddy"},
			Storage: config.StorageConfig{Driver: config.StorageLocal, UploadDir: t.TempDir()},
			Email:   config.EmailConfig{Transport: config.EmailLog, Source: "noreply@example.com"},
			Events:  config.EventsConfig{Driver: config.EventsChannel},
			Retry:   config.RetryConfig{MaxAttempts: 2},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:  client,
	}
}

func TestRedisRepository(t *testing.T) {
	ctx := context.Background()
	infra := testInfrastructure(t)

	files, err := infra.ObjectStorage(ctx)
	if err != nil {
		t.Fatalf("ObjectStorage() error = %v", err)
	}
	if files.Upload().Host() != models.AssetHostLocal {
		t.Errorf("upload host = %s, want local", files.Upload().Host())
	}

	repoConfig, err := infra.RepositoryConfig(ctx, files)
	if err != nil {
		t.Fatalf("RepositoryConfig() error = %v", err)
	}
	table, err := repoConfig.NewTable(kv.UsersSchema)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.(*redisstore.Table); !ok {
		t.Errorf("table = %T, want *redisstore.Table", table)
	}

	repo, err := kv.NewRepository(ctx, repoConfig)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestBackendSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("redis driver without connection", func(t *testing.T) {
		infra := testInfrastructure(t)
		infra.Redis = nil
		if _, err := infra.TableFactory(ctx); err == nil {
			t.Error("expected an error without a redis connection")
		}
	})

	t.Run("postgres driver without connection", func(t *testing.T) {
		infra := testInfrastructure(t)
		infra.Config.Store.Driver = config.StorePostgres
		if _, err := infra.TableFactory(ctx); err == nil {
			t.Error("expected an error without a database")
		}
	})

	t.Run("log mailer", func(t *testing.T) {
		infra := testInfrastructure(t)
		sender, err := infra.Mailer(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := sender.(*email.LogSender); !ok {
			t.Errorf("sender = %T, want *email.LogSender", sender)
		}
	})

	t.Run("smtp mailer retries", func(t *testing.T) {
		infra := testInfrastructure(t)
		infra.Config.Email.Transport = config.EmailSMTP
		sender, err := infra.Mailer(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := sender.(*email.SMTPSender); ok {
			t.Error("smtp sender should be wrapped with retries")
		}
	})

	t.Run("channel events", func(t *testing.T) {
		infra := testInfrastructure(t)
		publisher, err := infra.EventPublisher()
		if err != nil {
			t.Fatal(err)
		}
		if err := publisher.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("unknown events driver", func(t *testing.T) {
		infra := testInfrastructure(t)
		infra.Config.Events.Driver = "nats"
		if _, err := infra.EventPublisher(); err == nil {
			t.Error("expected an error for an unknown driver")
		}
	})
}
