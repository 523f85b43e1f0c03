package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const snapshotKeyPrefix = "intake:analysis-snapshot:"

// RedisSnapshotStore caches snapshots in redis in front of the table backed store.
// A redis failure never fails the call; it falls through to the database.
type RedisSnapshotStore struct {
	client  *redis.Client
	ttl     time.Duration
	backing Snapshot
}

// Make sure we conform to Snapshot interface
var _ Snapshot = (*RedisSnapshotStore)(nil)

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration, backing Snapshot) Snapshot {
	return &RedisSnapshotStore{client: client, ttl: ttl, backing: backing}
}

type cachedSnapshot struct {
	Payload    json.RawMessage `json:"payload"`
	ComputedAt time.Time       `json:"computed_at"`
}

func (r *RedisSnapshotStore) Put(ctx context.Context, snapshot model.AnalysisSnapshot) error {
	if err := r.backing.Put(ctx, snapshot); err != nil {
		return err
	}
	r.set(ctx, snapshot)
	return nil
}

func (r *RedisSnapshotStore) Get(ctx context.Context, templateID string) (*model.AnalysisSnapshot, error) {
	raw, err := r.client.Get(ctx, snapshotKey(templateID)).Bytes()
	switch {
	case err == nil:
		var c cachedSnapshot
		if jerr := json.Unmarshal(raw, &c); jerr == nil {
			return &model.AnalysisSnapshot{
				TemplateID: templateID,
				Payload:    datatypes.JSON(c.Payload),
				ComputedAt: c.ComputedAt,
			}, nil
		}
	case !errors.Is(err, redis.Nil):
		zap.S().Named("snapshot_cache").Warnw("failed to read snapshot from redis", "template_id", templateID, "error", err)
	}

	snapshot, err := r.backing.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	r.set(ctx, *snapshot)
	return snapshot, nil
}

func (r *RedisSnapshotStore) set(ctx context.Context, snapshot model.AnalysisSnapshot) {
	data, err := json.Marshal(cachedSnapshot{Payload: json.RawMessage(snapshot.Payload), ComputedAt: snapshot.ComputedAt})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, snapshotKey(snapshot.TemplateID), data, r.ttl).Err(); err != nil {
		zap.S().Named("snapshot_cache").Warnw("failed to write snapshot to redis", "template_id", snapshot.TemplateID, "error", err)
	}
}

func snapshotKey(templateID string) string {
	return fmt.Sprintf("%s%s", snapshotKeyPrefix, templateID)
}
