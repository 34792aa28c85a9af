package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlabs/hearth/pkg/Logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", Logger.New(true, "test"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProfileCreatedOnFirstSight(t *testing.T) {
	s := newTestStore(t)

	profile, err := s.GetUserProfile("companion-001")
	require.NoError(t, err)
	assert.Equal(t, "user_companion-001", profile.UserID)
	assert.Equal(t, "Friend", profile.Name)
	assert.NotNil(t, profile.LifeDetails)

	// A second lookup returns the same record, not a new one.
	again, err := s.GetUserProfile("companion-001")
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, again.UserID)
}

func TestProfileRoundTripsJSONFields(t *testing.T) {
	s := newTestStore(t)

	profile, err := s.GetUserProfile("companion-001")
	require.NoError(t, err)

	profile.PreferredName = "Margaret"
	profile.LifeDetails = map[string]any{"hobbies": []any{"gardening", "bridge"}}
	profile.Preferences = map[string]string{"voice": "warm"}
	require.NoError(t, s.SaveUserProfile(profile))

	loaded, err := s.GetUserProfile("companion-001")
	require.NoError(t, err)
	assert.Equal(t, "Margaret", loaded.PreferredName)
	assert.Equal(t, "warm", loaded.Preferences["voice"])
	assert.Contains(t, loaded.LifeDetails, "hobbies")
}

func TestHistoryWindowChronological(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 15; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, s.AddTurn("s-1", "u-1", role, string(rune('a'+i))))
	}

	history, err := s.History("s-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 10)

	// Most recent 10, oldest first.
	assert.Equal(t, string(rune('a'+5)), history[0].Content)
	assert.Equal(t, string(rune('a'+14)), history[9].Content)
}

func TestHistoryIsolatedBySession(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddTurn("s-1", "u-1", "user", "one"))
	require.NoError(t, s.AddTurn("s-2", "u-1", "user", "two"))

	history, err := s.History("s-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "one", history[0].Content)
}

func TestDuplicateTurnsPreserveOrdering(t *testing.T) {
	// At-least-once delivery can persist the same assistant turn twice; the
	// duplicate must append, never corrupt ordering.
	s := newTestStore(t)

	require.NoError(t, s.AddTurn("s-1", "u-1", "user", "hello"))
	require.NoError(t, s.AddTurn("s-1", "u-1", "assistant", "hi there"))
	require.NoError(t, s.AddTurn("s-1", "u-1", "assistant", "hi there"))

	history, err := s.History("s-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, history[1].Content, history[2].Content)
}

func TestCarePlanDefaultsWhenMissing(t *testing.T) {
	s := newTestStore(t)

	plan, err := s.GetCarePlan("u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", plan.UserID)
	assert.Empty(t, plan.Medications)
	assert.Empty(t, plan.Routines)
	assert.Empty(t, plan.Contacts)
}

func TestDeviceActivityTracking(t *testing.T) {
	s := newTestStore(t)

	_, known, err := s.LastDeviceActivity("companion-001")
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, s.UpdateDeviceActivity("companion-001", "u-1"))
	last, known, err := s.LastDeviceActivity("companion-001")
	require.NoError(t, err)
	assert.True(t, known)
	assert.WithinDuration(t, time.Now().UTC(), last, 5*time.Second)

	devices, err := s.ActiveDevices()
	require.NoError(t, err)
	assert.Contains(t, devices, "companion-001")
}

func TestLearnedFacts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddLearnedFact("u-1", "preference", "tea", "earl grey", "conversation"))
	require.NoError(t, s.AddLearnedFact("u-1", "family", "daughter", "visits sundays", "conversation"))

	facts, err := s.LearnedFacts("u-1")
	require.NoError(t, err)
	require.Len(t, facts, 2)

	other, err := s.LearnedFacts("u-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
