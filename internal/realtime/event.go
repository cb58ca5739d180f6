package realtime

import (
	"team-pulse/internal/message"
	"team-pulse/internal/presence"
	"team-pulse/internal/typing"
)

type Kind string

const (
	KindPresence Kind = "presence_changed"
	KindTyping   Kind = "typing_changed"
	KindMessage  Kind = "message_event"
)

// TypingEvent carries the signal plus the direction of the change, since
// subscribers cannot tell a refresh from a stop by the signal alone.
type TypingEvent struct {
	typing.Signal
	IsTyping bool `json:"is_typing"`
}

// Event is the tagged union sent to subscribers. Exactly one payload field is
// set, matching Kind.
type Event struct {
	Kind     Kind             `json:"kind"`
	Scope    Scope            `json:"scope"`
	Presence *presence.Record `json:"presence,omitempty"`
	Typing   *TypingEvent     `json:"typing,omitempty"`
	Message  *message.Message `json:"message,omitempty"`
}

func PresenceEvent(rec presence.Record) Event {
	return Event{Kind: KindPresence, Scope: Global, Presence: &rec}
}

func TypingChanged(sig typing.Signal, isTyping bool) Event {
	scope := Global
	if sig.RecipientID != "" {
		scope = Direct(sig.UserID, sig.RecipientID)
	}
	return Event{Kind: KindTyping, Scope: scope, Typing: &TypingEvent{Signal: sig, IsTyping: isTyping}}
}

func MessageEvent(msg message.Message) Event {
	return Event{
		Kind:    KindMessage,
		Scope:   ForMessage(msg.SenderID, msg.RecipientID),
		Message: &msg,
	}
}
