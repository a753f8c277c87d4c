package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateGetDelete(t *testing.T) {
	s := NewStore(time.Hour)

	sess := s.Create("ghp_token", "alice")
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, "alice", sess.Username)

	got := s.Get(sess.ID)
	require.NotNil(t, got)
	assert.Equal(t, "ghp_token", got.Token)

	s.Delete(sess.ID)
	assert.Nil(t, s.Get(sess.ID))
}

func TestStore_unknownID(t *testing.T) {
	s := NewStore(time.Hour)
	assert.Nil(t, s.Get("nope"))
}

func TestStore_expiry(t *testing.T) {
	s := NewStore(time.Minute)
	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	sess := s.Create("tk", "bob")
	require.NotNil(t, s.Get(sess.ID))

	current = current.Add(2 * time.Minute)
	assert.Nil(t, s.Get(sess.ID), "expired session must not resolve")
	assert.Equal(t, 0, s.Len(), "expired entry removed on access")
}

func TestStore_Purge(t *testing.T) {
	s := NewStore(time.Minute)
	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	s.Create("a", "a")
	s.Create("b", "b")
	current = current.Add(90 * time.Second)
	live := s.Create("c", "c")

	assert.Equal(t, 2, s.Purge())
	assert.Equal(t, 1, s.Len())
	assert.NotNil(t, s.Get(live.ID))
}
