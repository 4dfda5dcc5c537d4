package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), nil)
}

func TestSaveAndRead(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, s.Save("events", payload{Name: "robotics", Count: 3}))

	var got payload
	require.NoError(t, s.Read("events", &got))
	assert.Equal(t, payload{Name: "robotics", Count: 3}, got)
}

func TestReadMissingKey(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	var out map[string]any
	err := s.Read("absent", &out)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestReadCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.dir, 0750))
	require.NoError(t, os.WriteFile(s.filename("events"), []byte("{not json"), 0600))

	var out map[string]any
	err := s.Read("events", &out)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSaveRecoversByClearingCurrentVersion(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Save("events", []string{"a"}))
	require.NoError(t, s.Save("speakers", []string{"b"}))

	// First write attempt fails as if storage were exhausted; the retry
	// after ClearAll succeeds.
	failures := 1
	s.writeFile = func(name string, data []byte, perm os.FileMode) error {
		if failures > 0 {
			failures--
			return errors.New("no space left on device")
		}
		return os.WriteFile(name, data, perm)
	}

	require.NoError(t, s.Save("timeline", []string{"c"}))

	var timeline []string
	require.NoError(t, s.Read("timeline", &timeline))
	assert.Equal(t, []string{"c"}, timeline)

	// Recovery cleared the sibling entries under the current version.
	var events []string
	assert.ErrorIs(t, s.Read("events", &events), ErrMiss)
}

func TestSaveReportsFailureWhenRetryFails(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.writeFile = func(string, []byte, os.FileMode) error {
		return errors.New("no space left on device")
	}

	err := s.Save("events", []string{"a"})
	require.Error(t, err)
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Save("events", 1))
	require.NoError(t, s.Save("speakers", 2))

	// A foreign file in the same directory must survive.
	foreign := filepath.Join(s.dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0600))

	require.NoError(t, s.ClearAll())

	var out int
	assert.ErrorIs(t, s.Read("events", &out), ErrMiss)
	assert.ErrorIs(t, s.Read("speakers", &out), ErrMiss)
	_, err := os.Stat(foreign)
	assert.NoError(t, err)
}

func TestClearStaleVersions(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Save("events", 1))

	// Entries under a previous version prefix.
	stale := filepath.Join(s.dir, keyPrefix+"v1.events.json")
	require.NoError(t, os.WriteFile(stale, []byte("[]"), 0600))

	require.NoError(t, s.ClearStaleVersions())

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale version entry should be removed")

	var out int
	assert.NoError(t, s.Read("events", &out), "current version entry should survive")
}

func TestClearStaleVersionsMissingDir(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "never-created"), nil)
	assert.NoError(t, s.ClearStaleVersions())
	assert.NoError(t, s.ClearAll())
}
