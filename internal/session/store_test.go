package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
	"github.com/sfbridge-dev/sfbridge/internal/models"
)

func TestCreate_GeneratesID(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	sess := s.Create("", nil)
	require.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.Messages)
	assert.Equal(t, 1, s.Len())

	other := s.Create("", nil)
	assert.NotEqual(t, sess.ID, other.ID)
}

func TestCreate_KeepsCallerID(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	sess := s.Create("caller-chosen", nil)
	assert.Equal(t, "caller-chosen", sess.ID)

	got, ok := s.Get("caller-chosen")
	require.True(t, ok)
	assert.Equal(t, "caller-chosen", got.ID)
}

func TestUpdate_AppendOnlyOrder(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	sess := s.Create("conv", nil)

	appended := []string{"first", "second", "third", "fourth"}
	for i, content := range appended {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		sess.Messages = append(sess.Messages, models.Message{Role: role, Content: content})
		require.NoError(t, s.Update("conv", sess))
	}

	got, ok := s.Get("conv")
	require.True(t, ok)
	require.Len(t, got.Messages, len(appended))
	for i, content := range appended {
		assert.Equal(t, content, got.Messages[i].Content)
	}
}

func TestUpdate_UnknownSession(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	err := s.Update("missing", &Session{ID: "missing"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(err))
}

func TestUpdateAuth_ReplacesCredential(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	first := &models.AuthContext{AccessToken: "tok-a", InstanceURL: "https://a.example.com"}
	s.Create("conv", first)

	second := &models.AuthContext{AccessToken: "tok-b", InstanceURL: "https://b.example.com"}
	require.NoError(t, s.UpdateAuth("conv", second))

	got, ok := s.Get("conv")
	require.True(t, ok)
	assert.Equal(t, "tok-b", got.Auth.AccessToken)
}

func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	sess := s.Create("conv", nil)
	sess.Messages = append(sess.Messages, models.Message{Role: "user", Content: "hello"})
	require.NoError(t, s.Update("conv", sess))

	// Mutating a returned copy must not leak into the store
	copy1, ok := s.Get("conv")
	require.True(t, ok)
	copy1.Messages = append(copy1.Messages, models.Message{Role: "user", Content: "rogue"})
	copy1.Messages[0].Content = "mutated"

	copy2, ok := s.Get("conv")
	require.True(t, ok)
	require.Len(t, copy2.Messages, 1)
	assert.Equal(t, "hello", copy2.Messages[0].Content)
}

func TestDelete_Idempotent(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()

	s.Create("conv", nil)
	s.Delete("conv")
	s.Delete("conv")

	_, ok := s.Get("conv")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	s := NewStore(30 * time.Minute)
	defer s.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	s.Create("idle", nil)
	s.Create("active", nil)

	// "active" is touched 20 minutes in, "idle" never again
	now = base.Add(20 * time.Minute)
	_, ok := s.Get("active")
	require.True(t, ok)

	now = base.Add(45 * time.Minute)
	s.sweep()

	_, ok = s.Get("idle")
	assert.False(t, ok)
	_, ok = s.Get("active")
	assert.True(t, ok)
}
