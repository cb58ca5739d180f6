package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"team-pulse/internal/message"
	"team-pulse/internal/notify"
	"team-pulse/internal/realtime"
)

var ErrInvalidSender = errors.New("sender id required")

type MessageStore interface {
	Insert(ctx context.Context, m *message.Message) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

type Decider interface {
	Decide(ctx context.Context, msg message.Message, recipientID string) *notify.Intent
}

// Service runs one message event through the whole pipeline: append to the
// store, fan the live event out over the message's scope, then decide and
// dispatch a push per recipient.
type Service struct {
	store      MessageStore
	publisher  realtime.Publisher
	engine     Decider
	dispatcher notify.Dispatcher
}

func NewService(store MessageStore, pub realtime.Publisher, engine Decider, dispatcher notify.Dispatcher) *Service {
	return &Service{store: store, publisher: pub, engine: engine, dispatcher: dispatcher}
}

func (s *Service) Send(ctx context.Context, msg *message.Message) error {
	if msg.SenderID == "" {
		return ErrInvalidSender
	}
	if msg.Priority == "" {
		msg.Priority = message.PriorityNormal
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}

	if err := s.store.Insert(ctx, msg); err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	if err := s.publisher.Publish(ctx, realtime.MessageEvent(*msg)); err != nil {
		// The row is durable; subscribers recover it on their next refetch.
		log.Printf("pipeline: live publish failed for message %d: %v", msg.ID, err)
	}

	for _, recipientID := range s.recipients(ctx, msg) {
		intent := s.engine.Decide(ctx, *msg, recipientID)
		if intent == nil {
			continue
		}
		if err := s.dispatcher.Deliver(ctx, intent); err != nil {
			// The platform push service owns redelivery; no local retry.
			log.Printf("pipeline: push delivery failed for %s: %v", recipientID, err)
		}
	}
	return nil
}

// recipients resolves who gets a notification decision: the direct recipient,
// or for a broadcast everyone known except the sender.
func (s *Service) recipients(ctx context.Context, msg *message.Message) []string {
	if msg.RecipientID != "" {
		return []string{msg.RecipientID}
	}
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		log.Printf("pipeline: listing broadcast recipients failed: %v", err)
		return nil
	}
	out := ids[:0]
	for _, id := range ids {
		if id != msg.SenderID {
			out = append(out, id)
		}
	}
	return out
}
