package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectScopeUnordered(t *testing.T) {
	assert.Equal(t, Direct("alice", "bob"), Direct("bob", "alice"))
	assert.Equal(t, Scope("dm:alice:bob"), Direct("bob", "alice"))
}

func TestForMessage(t *testing.T) {
	assert.Equal(t, Global, ForMessage("alice", ""))
	assert.Equal(t, Direct("alice", "bob"), ForMessage("alice", "bob"))
}

func TestScopeChannel(t *testing.T) {
	assert.Equal(t, "rt:global", Global.Channel())
}
