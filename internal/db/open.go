package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
)

// Store is implemented by every progress backend.
type Store interface {
	Get(ctx context.Context, id int64) (*models.UserProgress, error)
	Create(ctx context.Context, id int64, displayName, handle string) (bool, error)
	AdvanceStep(ctx context.Context, id int64, step int, completed bool) error
	SetSocialHandle(ctx context.Context, id int64, platform models.SocialPlatform, value string) error
	SetWalletAddress(ctx context.Context, id int64, value string) error
	AppendScreenshot(ctx context.Context, id int64, assetID, fileName string) error
	Reset(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*models.Stats, error)
	ApplyStep(ctx context.Context, id int64, change models.StepChange) error
}

var (
	_ Store = (*ProgressRepository)(nil)
	_ Store = (*MongoProgressStore)(nil)
	_ Store = (*RedisProgressStore)(nil)
)

type OpenOptions struct {
	Driver        string
	SQLitePath    string
	MongoURL      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open connects the configured backend. The returned function releases it.
func Open(ctx context.Context, opts OpenOptions) (Store, func(), error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return openSQLite(opts.SQLitePath)
	case DriverMongo:
		return openMongo(ctx, opts)
	case DriverRedis:
		return openRedis(ctx, opts)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func openSQLite(path string) (Store, func(), error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := InitSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	queue := NewDBQueue(sqlDB)
	log.Printf("[STORE] Using sqlite database %s", path)
	return NewProgressRepository(queue), func() {
		queue.Close()
		sqlDB.Close()
	}, nil
}

func openMongo(ctx context.Context, opts OpenOptions) (Store, func(), error) {
	client, database, err := ConnectMongo(ctx, opts.MongoURL, opts.MongoDatabase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	store := NewMongoProgressStore(database)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, func() {
		_ = client.Disconnect(context.Background())
	}, nil
}

func openRedis(ctx context.Context, opts OpenOptions) (Store, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("[STORE] Connected to Redis at %s (db %d)", opts.RedisAddr, opts.RedisDB)
	return NewRedisProgressStore(client, opts.RedisPrefix), func() {
		client.Close()
	}, nil
}
