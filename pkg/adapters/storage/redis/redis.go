package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "dagrun:run:"

// RunStore implements ports.RunStore using Redis
type RunStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRunStore creates a new Redis run store; a zero ttl keeps records forever
func NewRunStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RunStore {
	return &RunStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save persists a run record as JSON with the configured TTL
func (s *RunStore) Save(ctx context.Context, record *domain.RunRecord) error {
	if record == nil || record.RunID == "" {
		return fmt.Errorf("run record must have an id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := s.client.Set(ctx, runKey(record.RunID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	s.logger.Debug("run record saved",
		zap.String("run_id", record.RunID),
		zap.String("status", string(record.Status)))

	return nil
}

// Get retrieves a run record
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	data, err := s.client.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}

	return &record, nil
}

// List returns the ids of all stored runs in lexical order
func (s *RunStore) List(ctx context.Context) ([]string, error) {
	var cursor uint64
	var runIDs []string

	for {
		batch, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range batch {
			if id := strings.TrimPrefix(key, keyPrefix); id != "" && id != key {
				runIDs = append(runIDs, id)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(runIDs)
	return runIDs, nil
}

// Delete removes a run record
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, runKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run record: %w", err)
	}

	s.logger.Debug("run record deleted", zap.String("run_id", runID))
	return nil
}

// runKey returns the Redis key for a run record
func runKey(runID string) string {
	return keyPrefix + runID
}
