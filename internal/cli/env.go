package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/foreman/internal/config"
	"github.com/aretw0/foreman/internal/logging"
	httpAdapter "github.com/aretw0/foreman/pkg/adapters/http"
	redisAdapter "github.com/aretw0/foreman/pkg/adapters/redis"
	"github.com/aretw0/foreman/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Flags are the root persistent flags. Empty values leave the file config untouched.
type Flags struct {
	ConfigPath string
	LogLevel   string
	RedisAddr  string
	ServiceURL string
}

// LoadConfig reads the config file and applies flag overrides.
func LoadConfig(f Flags) (config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.RedisAddr != "" {
		cfg.Redis.Addr = f.RedisAddr
	}
	if f.ServiceURL != "" {
		cfg.Service.URL = f.ServiceURL
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the stderr logger for cfg.LogLevel.
func NewLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// Env holds the adapters a command talks to.
type Env struct {
	Service   ports.MachineService
	Transport ports.Transport
	Store     ports.SessionStore
	Locker    ports.DistributedLocker
	Logger    *slog.Logger

	closers []func() error
}

// Close releases every connection opened by Connect.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// Connect dials redis and prepares the machine service client.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Env, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}

	return &Env{
		Service: httpAdapter.NewClient(cfg.Service.URL),
		Transport: redisAdapter.NewTransport(client,
			redisAdapter.WithChannelPrefix(cfg.Redis.Prefix),
			redisAdapter.WithTransportLogger(logger),
		),
		Store:  redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(cfg.Redis.Prefix+"session:")),
		Locker: redisAdapter.NewLocker(client, cfg.Redis.Prefix,
			redisAdapter.WithKeepAlive(),
			redisAdapter.WithLockerLogger(logger),
		),
		Logger:  logger,
		closers: []func() error{client.Close},
	}, nil
}
