package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelten/internal/db"
	"levelten/internal/domain"
	"levelten/internal/events"
	"levelten/internal/migrate"
	"levelten/internal/store"
)

func openJournal(t *testing.T) *events.Journal {
	t.Helper()
	conn, err := db.Open(db.Config{Name: t.Name()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	j := events.NewJournal(conn, nil)
	j.WithClock(func() time.Time { return time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC) })
	return j
}

func testStore() *store.Store {
	return store.New(domain.User{ID: "1001", Name: "You"}, []domain.Meeting{
		{ID: "1", Name: "Ops", DayOfWeek: "Monday", Members: []string{"You", "Ann"}},
		{ID: "2", Name: "Sales", DayOfWeek: "Friday", Members: []string{"You"}},
	})
}

func TestJournalRecordsStoreChanges(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	s := testStore()
	detach := j.Attach(s)
	defer detach()

	todo, err := s.AddTodo("1", store.NewTodo{Description: "Write agenda", Assignee: "Ann"})
	require.NoError(t, err)
	_, err = s.SetMemberRating("1", "Ann", 14)
	require.NoError(t, err)
	_, err = s.SendMessage("2", "hi")
	require.NoError(t, err)

	// failed mutations are not journaled
	_, err = s.AddTodo("missing", store.NewTodo{Description: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	evts, err := j.Latest(ctx, events.Filter{})
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, "message.sent", evts[0].Type)
	assert.Equal(t, "rating.updated", evts[1].Type)
	assert.Equal(t, "todo.created", evts[2].Type)
	assert.Equal(t, todo.ID, evts[2].EntityID)
	assert.Equal(t, "1001", evts[2].ActorID)
	assert.Equal(t, "2024-03-04T09:30:00Z", evts[2].TS)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(evts[1].Payload), &payload))
	assert.EqualValues(t, 10, payload["rating"])
	assert.EqualValues(t, 14, payload["requested"])
}

func TestJournalFilters(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	s := testStore()
	j.Attach(s)

	for i := 0; i < 3; i++ {
		_, err := s.AddHeadline("1", store.NewHeadline{Content: "news", Reporter: "You"})
		require.NoError(t, err)
	}
	_, err := s.UpdateConclusion("2", "done")
	require.NoError(t, err)

	evts, err := j.Latest(ctx, events.Filter{MeetingID: "1"})
	require.NoError(t, err)
	assert.Len(t, evts, 3)

	evts, err = j.Latest(ctx, events.Filter{Type: "meeting.conclusion.updated"})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "2", evts[0].MeetingID)

	evts, err = j.Latest(ctx, events.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Greater(t, evts[0].ID, evts[1].ID)

	older, err := j.Latest(ctx, events.Filter{BeforeID: evts[1].ID})
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Less(t, older[0].ID, evts[1].ID)
}

func TestJournalDetach(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	s := testStore()
	detach := j.Attach(s)

	_, err := s.UpdateConclusion("1", "a")
	require.NoError(t, err)
	detach()
	_, err = s.UpdateConclusion("1", "b")
	require.NoError(t, err)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
