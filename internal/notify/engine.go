package notify

import (
	"context"
	"log"

	"team-pulse/internal/message"
	"team-pulse/internal/presence"
	"team-pulse/internal/realtime"
)

const previewLength = 100

// Preferences is the recipient's stored notification policy. MutedScopes
// holds conversation scope keys; muting a sender is muting the direct scope
// with that sender.
type Preferences struct {
	MutedScopes       map[string]bool
	PriorityThreshold string
}

type PreferenceSource interface {
	GetPreferences(ctx context.Context, userID string) (Preferences, error)
}

type PresenceReader interface {
	Get(userID string) (presence.Record, bool)
}

type SubscriptionChecker interface {
	HasSubscriber(scope realtime.Scope, userID string) bool
}

// Engine decides whether an inbound message surfaces as a push notification.
// The decision is synchronous and side-effect free; delivery is a separate
// call against a Dispatcher.
type Engine struct {
	prefs    PreferenceSource
	presence PresenceReader
	subs     SubscriptionChecker
	baseURL  string
}

func NewEngine(prefs PreferenceSource, pres PresenceReader, subs SubscriptionChecker, baseURL string) *Engine {
	return &Engine{prefs: prefs, presence: pres, subs: subs, baseURL: baseURL}
}

// Decide returns the intent for recipientID, or nil when the notification is
// suppressed. A failed preference lookup fails open: a missed urgent
// notification costs more than a spurious one.
func (e *Engine) Decide(ctx context.Context, msg message.Message, recipientID string) *Intent {
	scope := realtime.ForMessage(msg.SenderID, msg.RecipientID)

	prefs, err := e.prefs.GetPreferences(ctx, recipientID)
	if err != nil {
		log.Printf("notify: preference lookup failed for %s, failing open: %v", recipientID, err)
		prefs = Preferences{}
	}

	if prefs.MutedScopes[string(scope)] || prefs.MutedScopes[string(realtime.Direct(msg.SenderID, recipientID))] {
		return nil
	}

	// An unset threshold filters nothing; "" would otherwise rank as normal.
	if prefs.PriorityThreshold != "" &&
		message.PriorityRank(msg.Priority) < message.PriorityRank(prefs.PriorityThreshold) {
		return nil
	}

	// Online with the conversation open: the live event through the
	// multiplexer already reaches them, a push would be a duplicate.
	if rec, ok := e.presence.Get(recipientID); ok && rec.Status == presence.StatusOnline {
		if e.subs.HasSubscriber(scope, recipientID) {
			return nil
		}
	}

	priority := PriorityNormal
	if msg.Priority == message.PriorityUrgent {
		priority = PriorityUrgent
	}

	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderID
	}

	return &Intent{
		RecipientID: recipientID,
		Title:       "New message from " + sender,
		Body:        bodyFor(msg),
		Tag:         string(scope),
		Priority:    priority,
		TargetURL:   e.baseURL + "/dashboard/messages?scope=" + string(scope),
	}
}

func bodyFor(msg message.Message) string {
	preview := msg.Content
	// Truncate on runes, not bytes, or multi-byte content gets cut short and
	// can end mid-rune.
	if r := []rune(preview); len(r) > previewLength {
		preview = string(r[:previewLength]) + "..."
	}
	if msg.Subject != "" && preview != "" {
		return msg.Subject + ": " + preview
	}
	if msg.Subject != "" {
		return msg.Subject
	}
	return preview
}
