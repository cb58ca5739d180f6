package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Bridge routes scope events through redis pub/sub so every server instance
// sees every publish. Local delivery happens only on the subscription side,
// which keeps one ordering authority per scope channel.
type Bridge struct {
	rdb *redis.Client
	mux *Mux
}

func NewBridge(rdb *redis.Client, mux *Mux) *Bridge {
	return &Bridge{rdb: rdb, mux: mux}
}

func (b *Bridge) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ev.Scope.Channel(), payload).Err()
}

// Run pumps redis scope channels into the local multiplexer until the
// context is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.PSubscribe(ctx, "rt:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("realtime: dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			b.mux.Publish(ctx, ev)
		}
	}
}
