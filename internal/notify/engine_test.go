package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-pulse/internal/message"
	"team-pulse/internal/presence"
	"team-pulse/internal/realtime"
)

type fakePrefs struct {
	prefs map[string]Preferences
	err   error
}

func (f *fakePrefs) GetPreferences(_ context.Context, userID string) (Preferences, error) {
	if f.err != nil {
		return Preferences{}, f.err
	}
	return f.prefs[userID], nil
}

type fakePresence struct {
	records map[string]presence.Record
}

func (f *fakePresence) Get(userID string) (presence.Record, bool) {
	r, ok := f.records[userID]
	return r, ok
}

type fakeSubs struct {
	open map[string]map[realtime.Scope]bool
}

func (f *fakeSubs) HasSubscriber(scope realtime.Scope, userID string) bool {
	return f.open[userID][scope]
}

type engineFixture struct {
	prefs    *fakePrefs
	presence *fakePresence
	subs     *fakeSubs
	engine   *Engine
}

func newFixture() *engineFixture {
	f := &engineFixture{
		prefs:    &fakePrefs{prefs: map[string]Preferences{}},
		presence: &fakePresence{records: map[string]presence.Record{}},
		subs:     &fakeSubs{open: map[string]map[realtime.Scope]bool{}},
	}
	f.engine = NewEngine(f.prefs, f.presence, f.subs, "http://localhost:8080")
	return f
}

func directMessage(priority string) message.Message {
	return message.Message{
		SenderID:    "alice",
		SenderName:  "Alice",
		RecipientID: "bob",
		Subject:     "standup",
		Content:     "moved to 10am",
		Priority:    priority,
	}
}

func TestOfflineRecipientGetsIntent(t *testing.T) {
	f := newFixture()
	f.presence.records["bob"] = presence.Record{UserID: "bob", Status: presence.StatusOffline}

	intent := f.engine.Decide(context.Background(), directMessage(message.PriorityNormal), "bob")
	require.NotNil(t, intent)
	assert.Equal(t, "bob", intent.RecipientID)
	assert.Equal(t, string(realtime.Direct("alice", "bob")), intent.Tag)
	assert.Equal(t, PriorityNormal, intent.Priority)
	assert.Equal(t, "New message from Alice", intent.Title)
	assert.Equal(t, "standup: moved to 10am", intent.Body)
	assert.Contains(t, intent.TargetURL, "/dashboard/messages")
}

func TestOnlineAndSubscribedSuppressed(t *testing.T) {
	f := newFixture()
	scope := realtime.Direct("alice", "bob")
	f.presence.records["bob"] = presence.Record{UserID: "bob", Status: presence.StatusOnline}
	f.subs.open["bob"] = map[realtime.Scope]bool{scope: true}

	assert.Nil(t, f.engine.Decide(context.Background(), directMessage(message.PriorityNormal), "bob"))
}

func TestOnlineButNotSubscribedGetsIntent(t *testing.T) {
	f := newFixture()
	f.presence.records["bob"] = presence.Record{UserID: "bob", Status: presence.StatusOnline}

	assert.NotNil(t, f.engine.Decide(context.Background(), directMessage(message.PriorityNormal), "bob"))
}

func TestMutedScopeSuppressed(t *testing.T) {
	f := newFixture()
	f.prefs.prefs["bob"] = Preferences{
		MutedScopes: map[string]bool{string(realtime.Direct("alice", "bob")): true},
	}

	assert.Nil(t, f.engine.Decide(context.Background(), directMessage(message.PriorityUrgent), "bob"))
}

func TestBelowThresholdSuppressed(t *testing.T) {
	f := newFixture()
	f.prefs.prefs["bob"] = Preferences{PriorityThreshold: message.PriorityHigh}

	assert.Nil(t, f.engine.Decide(context.Background(), directMessage(message.PriorityNormal), "bob"))
	assert.NotNil(t, f.engine.Decide(context.Background(), directMessage(message.PriorityUrgent), "bob"))
}

func TestNoStoredPreferencesFilterNothing(t *testing.T) {
	f := newFixture()
	assert.NotNil(t, f.engine.Decide(context.Background(), directMessage(message.PriorityLow), "bob"))
}

func TestUrgentMapsToUrgentIntent(t *testing.T) {
	f := newFixture()
	intent := f.engine.Decide(context.Background(), directMessage(message.PriorityUrgent), "bob")
	require.NotNil(t, intent)
	assert.Equal(t, PriorityUrgent, intent.Priority)
}

func TestHighPriorityStaysNormalIntent(t *testing.T) {
	f := newFixture()
	intent := f.engine.Decide(context.Background(), directMessage(message.PriorityHigh), "bob")
	require.NotNil(t, intent)
	assert.Equal(t, PriorityNormal, intent.Priority)
}

func TestPreferenceFailureFailsOpen(t *testing.T) {
	f := newFixture()
	f.prefs.err = errors.New("preferences unavailable")

	intent := f.engine.Decide(context.Background(), directMessage(message.PriorityUrgent), "bob")
	assert.NotNil(t, intent, "a missed urgent notification costs more than a spurious one")
}

func TestRapidMessagesShareTag(t *testing.T) {
	f := newFixture()
	first := f.engine.Decide(context.Background(), directMessage(message.PriorityNormal), "bob")
	second := f.engine.Decide(context.Background(), directMessage(message.PriorityNormal), "bob")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Tag, second.Tag, "collapse happens at presentation via the shared tag")
}

func TestBroadcastTaggedGlobal(t *testing.T) {
	f := newFixture()
	msg := directMessage(message.PriorityNormal)
	msg.RecipientID = ""

	intent := f.engine.Decide(context.Background(), msg, "bob")
	require.NotNil(t, intent)
	assert.Equal(t, string(realtime.Global), intent.Tag)
}

func TestLongContentPreviewTruncated(t *testing.T) {
	f := newFixture()
	msg := directMessage(message.PriorityNormal)
	msg.Subject = ""
	msg.Content = strings.Repeat("x", 300)

	intent := f.engine.Decide(context.Background(), msg, "bob")
	require.NotNil(t, intent)
	assert.Len(t, intent.Body, 103)
	assert.True(t, strings.HasSuffix(intent.Body, "..."))
}

func TestMultiByteContentPreviewCountsRunes(t *testing.T) {
	f := newFixture()
	msg := directMessage(message.PriorityNormal)
	msg.Subject = ""
	msg.Content = strings.Repeat("日", 150)

	intent := f.engine.Decide(context.Background(), msg, "bob")
	require.NotNil(t, intent)
	assert.True(t, utf8.ValidString(intent.Body), "truncation must not split a rune")
	assert.Equal(t, 103, utf8.RuneCountInString(intent.Body))
	assert.True(t, strings.HasSuffix(intent.Body, "..."))

	// 99 multi-byte chars are under the limit even though the byte length
	// is not, so nothing gets cut.
	msg.Content = strings.Repeat("é", 99)
	intent = f.engine.Decide(context.Background(), msg, "bob")
	require.NotNil(t, intent)
	assert.Equal(t, msg.Content, intent.Body)
}
