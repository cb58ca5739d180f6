package notify

// IntentPriority maps to the push presentation contract: urgent requests a
// persistent notification with the stronger alert pattern, anything else gets
// the default transient presentation.
type IntentPriority string

const (
	PriorityNormal IntentPriority = "normal"
	PriorityUrgent IntentPriority = "urgent"
)

// Intent is a decided push notification. It is produced once by the engine
// and consumed once by a dispatcher; nothing in this service persists it.
// Tag carries the conversation scope so rapid messages from one conversation
// collapse into a single visible notification at presentation time.
type Intent struct {
	RecipientID string         `json:"-"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Tag         string         `json:"tag"`
	Priority    IntentPriority `json:"priority"`
	TargetURL   string         `json:"target_url"`
}
