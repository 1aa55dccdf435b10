package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var _ ports.SessionStore = (*Store)(nil)

// Store implements ports.SessionStore using one Redis hash per workspace.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of a workspace's sessions, refreshed on every Save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix + "session:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(workspace string) string {
	return s.prefix + workspace
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save upserts the session in the workspace hash.
func (s *Store) Save(ctx context.Context, workspace string, session domain.MachineSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()

	// 1. Write the session field
	pipe.HSet(ctx, s.key(workspace), string(session.ID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(workspace), s.ttl)
	}

	// 2. Track the workspace in the index (score = expiry)
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: workspace,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes the session from the workspace hash.
func (s *Store) Delete(ctx context.Context, workspace string, id domain.MachineID) error {
	if err := s.client.HDel(ctx, s.key(workspace), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the workspace's sessions ordered by ID.
func (s *Store) List(ctx context.Context, workspace string) ([]domain.MachineSession, error) {
	fields, err := s.client.HGetAll(ctx, s.key(workspace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]domain.MachineSession, 0, len(fields))
	for id, raw := range fields {
		var session domain.MachineSession
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

// Workspaces returns the workspaces holding unexpired sessions.
func (s *Store) Workspaces(ctx context.Context) ([]string, error) {
	// Lazy Cleanup: Remove expired workspaces from Index
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired workspaces: %w", err)
	}

	workspaces, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
