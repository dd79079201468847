package persistence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
	"placesync/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	aggregateKeyPrefix     = "place:agg:"
	aggregateChannelPrefix = "place:agg:events:"
)

// RedisAggregateFeed implements AggregateFeed on Redis: current counters live
// in a per-place hash maintained by the backend's counter pipeline, and every
// counter change is mirrored onto a pub/sub channel the engine subscribes to.
type RedisAggregateFeed struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisAggregateFeed creates a Redis-backed aggregate feed.
func NewRedisAggregateFeed(client *redis.Client, log logger.Logger) *RedisAggregateFeed {
	if log == nil {
		log = logger.Noop()
	}
	return &RedisAggregateFeed{
		client: client,
		logger: log.WithComponent("redis_aggregate_feed"),
	}
}

var _ repository.AggregateFeed = (*RedisAggregateFeed)(nil)

// Subscribe delivers the current counters first, then every published
// counter change in arrival order. The returned cancel closes the delivery
// channel.
func (r *RedisAggregateFeed) Subscribe(ctx context.Context, placeKey string) (<-chan model.AggregateSnapshot, repository.CancelFunc, error) {
	subCtx, cancelSub := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(subCtx, aggregateChannelPrefix+placeKey)

	// Force the subscription onto the wire before the initial read so no
	// update published in between is missed.
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancelSub()
		_ = pubsub.Close()
		r.logger.Error("Failed to subscribe to aggregate channel",
			zap.String("placeKey", placeKey),
			zap.Error(err))
		return nil, nil, err
	}

	initial, err := r.readCurrent(ctx, placeKey)
	if err != nil {
		cancelSub()
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan model.AggregateSnapshot, 8)

	go func() {
		defer close(out)

		select {
		case out <- initial:
		case <-subCtx.Done():
			return
		}

		for msg := range pubsub.Channel() {
			snap, err := DecodeAggregateMessage([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("Dropping malformed aggregate message",
					zap.String("placeKey", placeKey),
					zap.Error(err))
				continue
			}
			select {
			case out <- snap:
			case <-subCtx.Done():
				return
			}
		}
	}()

	cancel := func() {
		cancelSub()
		_ = pubsub.Close()
	}
	return out, cancel, nil
}

func (r *RedisAggregateFeed) readCurrent(ctx context.Context, placeKey string) (model.AggregateSnapshot, error) {
	fields, err := r.client.HGetAll(ctx, aggregateKeyPrefix+placeKey).Result()
	if err != nil {
		r.logger.Error("Failed to read aggregate hash",
			zap.String("placeKey", placeKey),
			zap.Error(err))
		return model.AggregateSnapshot{}, err
	}
	snap := model.AggregateSnapshot{
		PlaceKey:  placeKey,
		Exists:    len(fields) > 0,
		Timestamp: time.Now(),
	}
	if v, ok := fields["wishlistCount"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.Aggregate.WishlistCount = n
		}
	}
	if v, ok := fields["favouriteCount"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.Aggregate.FavouriteCount = n
		}
	}
	return snap, nil
}

// PublishAggregate writes the counters for a place and mirrors the update
// onto the pub/sub channel. Used by counter backfill tooling and integration
// tests; the engine itself never writes aggregates.
func (r *RedisAggregateFeed) PublishAggregate(ctx context.Context, placeKey string, agg model.PlaceAggregate) error {
	err := r.client.HSet(ctx, aggregateKeyPrefix+placeKey,
		"wishlistCount", agg.WishlistCount,
		"favouriteCount", agg.FavouriteCount,
	).Err()
	if err != nil {
		r.logger.Error("Failed to write aggregate hash",
			zap.String("placeKey", placeKey),
			zap.Error(err))
		return err
	}

	payload, err := json.Marshal(model.AggregateSnapshot{
		PlaceKey:  placeKey,
		Aggregate: agg,
		Exists:    true,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, aggregateChannelPrefix+placeKey, payload).Err()
}

// DecodeAggregateMessage parses one pub/sub payload into a snapshot.
func DecodeAggregateMessage(payload []byte) (model.AggregateSnapshot, error) {
	var snap model.AggregateSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return model.AggregateSnapshot{}, err
	}
	snap.Exists = true
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	return snap, nil
}
