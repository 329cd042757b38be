package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelten/internal/app"
	"levelten/internal/config"
	"levelten/internal/logging"
	"levelten/internal/store"
)

func TestNewWithDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Name = t.Name()
	a, err := app.New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Store.Meetings(), 3)
	assert.Equal(t, "You", a.Store.CurrentUser().Name)
	require.NotNil(t, a.Journal)

	_, err = a.Store.UpdateConclusion("1", "Good meeting")
	require.NoError(t, err)
	n, err := a.Journal.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h, err := a.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWithOverrides(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`current_user: {id: "1", name: Seed User}
meetings:
  - id: ops
    name: Ops L10
    day_of_week: Tuesday
    members: [Ann, Bob]
`), 0o644))

	cfg := config.Default()
	cfg.Seed.File = seedPath
	cfg.User.ID = "u7"
	cfg.User.Name = "Ann"
	cfg.Journal.Enabled = false
	a, err := app.New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Journal)
	assert.Equal(t, "Ann", a.Store.CurrentUser().Name)
	_, err = a.Store.FindMeeting("ops")
	require.NoError(t, err)
	_, err = a.Store.FindMeeting("1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewRejectsBadSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Seed.File = filepath.Join(t.TempDir(), "missing.yml")
	_, err := app.New(cfg, logging.Discard())
	require.Error(t, err)
}
