package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dispatcher is the delivery boundary. The platform push service behind it
// owns presentation (tag collapse, view/dismiss actions) and any redelivery;
// this side only hands the payload over.
type Dispatcher interface {
	Deliver(ctx context.Context, intent *Intent) error
}

// RedisDispatcher publishes intents on a per-recipient channel where the
// push relay picks them up for out-of-process display.
type RedisDispatcher struct {
	rdb *redis.Client
}

func NewRedisDispatcher(rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb}
}

func (d *RedisDispatcher) Deliver(ctx context.Context, intent *Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	if err := d.rdb.Publish(ctx, "push:"+intent.RecipientID, payload).Err(); err != nil {
		return fmt.Errorf("push transport: %w", err)
	}
	return nil
}
