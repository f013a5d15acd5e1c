package pkg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ibuddy-app/ibuddy-service/internal/config"
	"github.com/ibuddy-app/ibuddy-service/internal/email"
	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories/kv"
	"github.com/ibuddy-app/ibuddy-service/internal/retry"
	"github.com/ibuddy-app/ibuddy-service/internal/storage"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
	"github.com/ibuddy-app/ibuddy-service/internal/store/dynamostore"
	"github.com/ibuddy-app/ibuddy-service/internal/store/gormstore"
	"github.com/ibuddy-app/ibuddy-service/internal/store/redisstore"
)

// Infrastructure holds the connections selected by configuration and builds
// the backends the services run on. Redis and DB are nil unless connected.
type Infrastructure struct {
	Config *config.Config
	Logger *slog.Logger
	Redis  *redis.Client
	DB     *gorm.DB

	aws *AWSClients
}

func (i *Infrastructure) awsClients(ctx context.Context) (*AWSClients, error) {
	if i.aws == nil {
		clients, err := NewAWSClients(ctx, i.Config.AWS)
		if err != nil {
			return nil, err
		}
		i.aws = clients
	}
	return i.aws, nil
}

func (i *Infrastructure) Retry() retry.Config {
	r := i.Config.Retry
	return retry.Config{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

// TableFactory opens tables on the configured store driver. DynamoDB tables
// are created first when CREATE_TABLES is set.
func (i *Infrastructure) TableFactory(ctx context.Context) (kv.TableFactory, error) {
	switch i.Config.Store.Driver {
	case config.StoreRedis:
		if i.Redis == nil {
			return nil, errors.New("redis store driver requires a redis connection")
		}
		namespace := i.Config.Redis.Namespace
		return func(schema store.Schema) (store.Table, error) {
			return redisstore.New(i.Redis, namespace, schema), nil
		}, nil

	case config.StorePostgres:
		if i.DB == nil {
			return nil, errors.New("postgres store driver requires a database connection")
		}
		return func(schema store.Schema) (store.Table, error) {
			return gormstore.New(i.DB, schema), nil
		}, nil

	case config.StoreDynamoDB:
		clients, err := i.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		api := clients.DynamoDB()
		prefix := i.Config.Store.TablePrefix
		create := i.Config.Store.CreateTables
		return func(schema store.Schema) (store.Table, error) {
			t := dynamostore.New(api, prefix, schema)
			if create {
				if err := t.EnsureTable(ctx); err != nil {
					return nil, err
				}
			}
			return t, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", i.Config.Store.Driver)
}

// RepositoryConfig assembles the repository configuration for the store
// driver, including its health probe.
func (i *Infrastructure) RepositoryConfig(ctx context.Context, files *storage.Registry) (kv.RepositoryConfig, error) {
	factory, err := i.TableFactory(ctx)
	if err != nil {
		return kv.RepositoryConfig{}, err
	}
	cfg := kv.RepositoryConfig{
		NewTable: factory,
		Retry:    i.Retry(),
		Files:    files,
		Logger:   i.Logger,
	}
	switch i.Config.Store.Driver {
	case config.StoreRedis:
		cfg.Ping = func(ctx context.Context) error { return i.Redis.Ping(ctx).Err() }
	case config.StorePostgres:
		cfg.Ping = func(ctx context.Context) error {
			sqlDB, err := i.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return cfg, nil
}

// ObjectStorage returns a registry writing to the configured driver. The
// other store stays readable when it is configured too, so files uploaded
// before a driver switch can still be downloaded.
func (i *Infrastructure) ObjectStorage(ctx context.Context) (*storage.Registry, error) {
	c := i.Config.Storage

	var (
		local *storage.Local
		s3    *storage.S3
	)
	if c.Driver == config.StorageLocal || c.UploadDir != "" {
		l, err := storage.NewLocal(c.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open upload dir: %w", err)
		}
		local = l
	}
	if c.Bucket != "" {
		clients, err := i.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		s3 = storage.NewS3(clients.S3(), c.Bucket)
	}

	if c.Driver == config.StorageS3 {
		if local != nil {
			return storage.NewRegistry(s3, local), nil
		}
		return storage.NewRegistry(s3), nil
	}
	if s3 != nil {
		return storage.NewRegistry(local, s3), nil
	}
	return storage.NewRegistry(local), nil
}

// Mailer returns the configured transport with retries on delivery failures.
func (i *Infrastructure) Mailer(ctx context.Context) (email.Sender, error) {
	c := i.Config.Email
	var sender email.Sender
	switch c.Transport {
	case config.EmailSES:
		clients, err := i.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		sender = email.NewSESSender(clients.SES(), c.Source)
	case config.EmailSMTP:
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			Source:   c.Source,
		})
	case config.EmailLog:
		return &email.LogSender{Logger: i.Logger, Source: c.Source}, nil
	default:
		return nil, fmt.Errorf("unknown email transport %q", c.Transport)
	}
	return email.NewRetryingSender(sender, i.Retry()), nil
}

func (i *Infrastructure) EventPublisher() (events.Publisher, error) {
	switch i.Config.Events.Driver {
	case config.EventsKafka:
		return events.NewKafkaPublisher(i.Config.Events.KafkaBrokers, i.Logger)
	case config.EventsChannel:
		publisher, _ := events.NewGoChannelPublisher(i.Logger)
		return publisher, nil
	}
	return nil, fmt.Errorf("unknown events driver %q", i.Config.Events.Driver)
}

// Close releases the connections. Errors are joined.
func (i *Infrastructure) Close() error {
	var errs []error
	if i.DB != nil {
		if sqlDB, err := i.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	return errors.Join(errs...)
}
