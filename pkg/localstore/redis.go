package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/driftlab/assessor/pkg/models"
)

const (
	redisDraftKeyPrefix = "assessor:draft:" + draftPrefix
	redisIndexKey       = "assessor:draft:index"
)

// RedisStore keeps drafts in a shared redis instance, one key per draft
// plus an index hash. Used on shared workstations where the state
// directory does not follow the user.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to the redis instance named by the state URL.
func NewRedisStore(stateURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(stateURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis state url: %w", err)
	}

	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Save(ctx context.Context, record *models.DraftRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return NewDraftError("Save", record.FormID, fmt.Errorf("failed to marshal draft: %w", err))
	}

	summary, err := json.Marshal(record.Summary())
	if err != nil {
		return NewDraftError("Save", record.FormID, fmt.Errorf("failed to marshal draft summary: %w", err))
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisDraftKeyPrefix+record.FormID, data, 0)
	pipe.HSet(ctx, redisIndexKey, record.FormID, summary)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return NewDraftError("Save", record.FormID, err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, formID string) (*models.DraftRecord, error) {
	data, err := s.client.Get(ctx, redisDraftKeyPrefix+formID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NewDraftError("Get", formID, ErrDraftNotFound)
		}

		return nil, NewDraftError("Get", formID, err)
	}

	var record models.DraftRecord

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, NewDraftError("Get", formID, fmt.Errorf("failed to unmarshal draft: %w", err))
	}

	return &record, nil
}

func (s *RedisStore) Latest(ctx context.Context) (*models.DraftRecord, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	if len(summaries) == 0 {
		return nil, NewDraftError("Latest", "", ErrNoDrafts)
	}

	return s.Get(ctx, summaries[0].FormID)
}

func (s *RedisStore) Delete(ctx context.Context, formID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisDraftKeyPrefix+formID)
	pipe.HDel(ctx, redisIndexKey, formID)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return NewDraftError("Delete", formID, err)
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.DraftSummary, error) {
	entries, err := s.client.HGetAll(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, NewDraftError("List", "", err)
	}

	summaries := make([]models.DraftSummary, 0, len(entries))

	for formID, raw := range entries {
		var summary models.DraftSummary

		err = json.Unmarshal([]byte(raw), &summary)
		if err != nil {
			return nil, NewDraftError("List", formID, fmt.Errorf("%w: %w", ErrIndexCorrupt, err))
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SavedAt.After(summaries[j].SavedAt)
	})

	return summaries, nil
}

func (s *RedisStore) Has(ctx context.Context) bool {
	count, err := s.client.HLen(ctx, redisIndexKey).Result()
	if err != nil {
		return false
	}

	return count > 0
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}
