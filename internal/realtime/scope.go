package realtime

// Scope is the routing key for presence, typing, and message events. It is
// either the named broadcast scope or a canonicalized direct pair.
type Scope string

const Global Scope = "global"

// Direct returns the scope for a pair of users. The pair is unordered: the
// two ids are sorted lexicographically so both sides compute the same key.
func Direct(a, b string) Scope {
	if b < a {
		a, b = b, a
	}
	return Scope("dm:" + a + ":" + b)
}

// Channel is the redis pub/sub channel carrying this scope's events.
func (s Scope) Channel() string {
	return "rt:" + string(s)
}

// ForMessage routes a message row: direct pair when a recipient is set,
// broadcast otherwise.
func ForMessage(senderID, recipientID string) Scope {
	if recipientID == "" {
		return Global
	}
	return Direct(senderID, recipientID)
}
