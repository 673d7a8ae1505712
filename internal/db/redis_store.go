package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisMaxTxRetries = 5

var ErrTxContention = errors.New("too many concurrent updates")

// RedisProgressStore keeps each record as a JSON document under its own key.
// Conditional writes use WATCH/MULTI optimistic transactions.
type RedisProgressStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisProgressStore(client *redis.Client, prefix string) *RedisProgressStore {
	if prefix == "" {
		prefix = "onboarding"
	}
	return &RedisProgressStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisProgressStore) userKey(id int64) string {
	return fmt.Sprintf("%s:user:%d", s.prefix, id)
}

func (s *RedisProgressStore) usersKey() string {
	return s.prefix + ":users"
}

func (s *RedisProgressStore) completedKey() string {
	return s.prefix + ":completed"
}

func (s *RedisProgressStore) Get(ctx context.Context, id int64) (*models.UserProgress, error) {
	data, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeProgress(data)
}

func (s *RedisProgressStore) Create(ctx context.Context, id int64, displayName, handle string) (bool, error) {
	data, err := json.Marshal(models.NewUserProgress(id, displayName, handle, s.now()))
	if err != nil {
		return false, err
	}

	var setCmd *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, s.userKey(id), data, 0)
		pipe.SAdd(ctx, s.usersKey(), id)
		return nil
	})
	if err != nil {
		return false, err
	}
	return setCmd.Val(), nil
}

func (s *RedisProgressStore) AdvanceStep(ctx context.Context, id int64, step int, completed bool) error {
	return s.update(ctx, id, func(p *models.UserProgress) error {
		p.AdvanceStep(step, completed, s.now())
		return nil
	})
}

func (s *RedisProgressStore) ApplyStep(ctx context.Context, id int64, change models.StepChange) error {
	return s.update(ctx, id, func(p *models.UserProgress) error {
		if p.CurrentStep != change.Step {
			return ErrStepConflict
		}
		p.Apply(change, s.now())
		return nil
	})
}

func (s *RedisProgressStore) SetSocialHandle(ctx context.Context, id int64, platform models.SocialPlatform, value string) error {
	if !platform.IsValid() {
		return fmt.Errorf("unknown social platform %q", platform)
	}
	return s.update(ctx, id, func(p *models.UserProgress) error {
		if p.SocialHandles == nil {
			p.SocialHandles = map[models.SocialPlatform]string{}
		}
		p.SocialHandles[platform] = value
		p.UpdatedAt = s.now()
		return nil
	})
}

func (s *RedisProgressStore) SetWalletAddress(ctx context.Context, id int64, value string) error {
	return s.update(ctx, id, func(p *models.UserProgress) error {
		p.WalletAddress = value
		p.UpdatedAt = s.now()
		return nil
	})
}

func (s *RedisProgressStore) AppendScreenshot(ctx context.Context, id int64, assetID, fileName string) error {
	return s.update(ctx, id, func(p *models.UserProgress) error {
		now := s.now()
		p.Screenshots = append(p.Screenshots, models.Screenshot{AssetID: assetID, FileName: fileName, UploadedAt: now})
		p.UpdatedAt = now
		return nil
	})
}

func (s *RedisProgressStore) Reset(ctx context.Context, id int64) error {
	return s.update(ctx, id, func(p *models.UserProgress) error {
		p.Reset(s.now())
		return nil
	})
}

func (s *RedisProgressStore) Stats(ctx context.Context) (*models.Stats, error) {
	var totalCmd, completedCmd *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		totalCmd = pipe.SCard(ctx, s.usersKey())
		completedCmd = pipe.SCard(ctx, s.completedKey())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.NewStats(totalCmd.Val(), completedCmd.Val()), nil
}

// update runs fn as a read-modify-write of one record inside an optimistic
// transaction, retrying when another writer touched the key first.
func (s *RedisProgressStore) update(ctx context.Context, id int64, fn func(*models.UserProgress) error) error {
	key := s.userKey(id)
	member := strconv.FormatInt(id, 10)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		progress, err := decodeProgress(data)
		if err != nil {
			return err
		}
		if err := fn(progress); err != nil {
			return err
		}

		encoded, err := json.Marshal(progress)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			if progress.IsComplete() {
				pipe.SAdd(ctx, s.completedKey(), member)
			} else {
				pipe.SRem(ctx, s.completedKey(), member)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxContention
}

func decodeProgress(data []byte) (*models.UserProgress, error) {
	var progress models.UserProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if progress.StepsCompleted == nil {
		progress.StepsCompleted = map[int]bool{}
	}
	if progress.SocialHandles == nil {
		progress.SocialHandles = map[models.SocialPlatform]string{}
	}
	if progress.Screenshots == nil {
		progress.Screenshots = []models.Screenshot{}
	}
	return &progress, nil
}
