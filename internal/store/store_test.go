package store_test

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelten/internal/domain"
	"levelten/internal/store"
)

var fixedNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func sampleMeetings() []domain.Meeting {
	return []domain.Meeting{
		{
			ID:        "1",
			Name:      "Marketing Team L10",
			DayOfWeek: "Friday",
			Time:      "10:00 AM",
			Duration:  "90 min",
			Members:   []string{"Jane Smith", "John Doe", "You"},
			Rocks: []domain.Rock{
				{ID: "101", Description: "Launch landing page", Owner: "Jane Smith", Status: domain.RockOnTrack, CreatedAt: "2023-10-15"},
				{ID: "102", Description: "Q3 plan", Owner: "You", Status: domain.RockOffTrack, CreatedAt: "2023-09-28"},
			},
			Headlines: []domain.Headline{
				{ID: "201", Content: "10k impressions", Reporter: "Jane Smith", CreatedAt: "2023-10-20"},
			},
			Todos: []domain.Todo{
				{ID: "301", Description: "Schedule photoshoot", Assignee: "Jane Smith", CreatedAt: "2023-10-12"},
				{ID: "302", Description: "Review analytics", Assignee: "You", Completed: true, CreatedAt: "2023-10-10"},
			},
			Issues: []domain.Issue{
				{ID: "401", Description: "Traffic declining", Reporter: "Jane Smith", Category: "Marketing", CreatedAt: "2023-10-08"},
				{ID: "402", Description: "Ad budget", Reporter: "You", Category: "Finance", CreatedAt: "2023-10-05"},
				{ID: "403", Description: "Competitor campaign", Reporter: "John Doe", Category: "Competition", CreatedAt: "2023-11-01"},
			},
		},
		{
			ID:        "2",
			Name:      "Sales Team L10",
			DayOfWeek: "Monday",
			Members:   []string{"Alex Johnson", "You"},
			Rocks: []domain.Rock{
				{ID: "104", Description: "New CRM", Owner: "Alex Johnson", Status: domain.RockOnTrack, CreatedAt: "2023-09-15"},
			},
			Todos: []domain.Todo{
				{ID: "304", Description: "Update deck", Assignee: "You", CreatedAt: "2023-10-05"},
			},
			Issues: []domain.Issue{
				{ID: "404", Description: "Long sales cycle", Reporter: "Alex Johnson", Category: "Sales", CreatedAt: "2023-09-28"},
			},
		},
	}
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(domain.User{ID: "1001", Name: "You"}, sampleMeetings())
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestFindMeeting(t *testing.T) {
	s := newStore(t)

	m, err := s.FindMeeting("1")
	require.NoError(t, err)
	assert.Equal(t, "Marketing Team L10", m.Name)

	m, err = s.FindMeeting("does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, domain.Meeting{}, m)
}

func TestReadsAreCopies(t *testing.T) {
	s := newStore(t)

	m, err := s.FindMeeting("1")
	require.NoError(t, err)
	m.Todos[0].Description = "tampered"
	m.Members[0] = "Mallory"

	again, err := s.FindMeeting("1")
	require.NoError(t, err)
	assert.Equal(t, "Schedule photoshoot", again.Todos[0].Description)
	assert.Equal(t, "Jane Smith", again.Members[0])
}

func TestMeetingsForMember(t *testing.T) {
	s := newStore(t)

	ids := func(ms []domain.Meeting) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "2"}, ids(s.MeetingsForMember("You")))
	assert.Equal(t, []string{"2"}, ids(s.MeetingsForMember("Alex Johnson")))
	assert.Empty(t, s.MeetingsForMember("Nobody"))
}

func TestUpdateConclusion(t *testing.T) {
	s := newStore(t)

	m, err := s.UpdateConclusion("1", "Great session")
	require.NoError(t, err)
	assert.Equal(t, "Great session", m.Conclusion)

	_, err = s.UpdateConclusion("missing", "x")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddTodo(t *testing.T) {
	s := newStore(t)

	todo, err := s.AddTodo("1", store.NewTodo{Description: "X", Assignee: "Jane Smith", CreatedAt: "2024-01-01"})
	require.NoError(t, err)
	assert.False(t, todo.Completed)
	assert.Equal(t, "2024-01-01", todo.CreatedAt)

	m, err := s.FindMeeting("1")
	require.NoError(t, err)
	require.Len(t, m.Todos, 3)
	assert.Equal(t, todo, m.Todos[2])
	for _, existing := range m.Todos[:2] {
		assert.NotEqual(t, existing.ID, todo.ID)
	}
}

func TestAddTodoDefaultsCreatedAt(t *testing.T) {
	s := newStore(t)

	todo, err := s.AddTodo("1", store.NewTodo{Description: "X", Assignee: "You"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", todo.CreatedAt)
}

func TestAddTodoRejectsEmptyDescription(t *testing.T) {
	s := newStore(t)

	_, err := s.AddTodo("1", store.NewTodo{Description: "  "})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	m, _ := s.FindMeeting("1")
	assert.Len(t, m.Todos, 2)
}

func TestIDsUniqueWhenGeneratorRepeats(t *testing.T) {
	s := newStore(t)
	s.NewID = func(kind string) string { return "301" }

	first, err := s.AddTodo("1", store.NewTodo{Description: "a"})
	require.NoError(t, err)
	second, err := s.AddTodo("1", store.NewTodo{Description: "b"})
	require.NoError(t, err)

	assert.NotEqual(t, "301", first.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSetTodoCompleted(t *testing.T) {
	s := newStore(t)

	todo, err := s.SetTodoCompleted("1", "301", true)
	require.NoError(t, err)
	assert.True(t, todo.Completed)
	assert.Equal(t, "2024-03-04T09:30:00Z", todo.CompletedAt)

	todo, err = s.SetTodoCompleted("1", "301", false)
	require.NoError(t, err)
	assert.False(t, todo.Completed)
	assert.Empty(t, todo.CompletedAt)

	_, err = s.SetTodoCompleted("1", "nope", true)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.SetTodoCompleted("nope", "301", true)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetRockStatusTransitionsFreely(t *testing.T) {
	s := newStore(t)

	for _, status := range []domain.RockStatus{domain.RockOffTrack, domain.RockCompleted, domain.RockOnTrack, domain.RockCompleted} {
		rock, err := s.SetRockStatus("1", "101", status)
		require.NoError(t, err)
		assert.Equal(t, status, rock.Status)
		if status == domain.RockCompleted {
			assert.NotEmpty(t, rock.CompletedAt)
		} else {
			assert.Empty(t, rock.CompletedAt)
		}
	}

	_, err := s.SetRockStatus("1", "101", "stalled")
	require.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = s.SetRockStatus("1", "999", domain.RockCompleted)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddRockStartsOnTrack(t *testing.T) {
	s := newStore(t)

	rock, err := s.AddRock("2", store.NewRock{Description: "Hire two reps", Owner: "Alex Johnson"})
	require.NoError(t, err)
	assert.Equal(t, domain.RockOnTrack, rock.Status)
	assert.Equal(t, "2024-03-04", rock.CreatedAt)
}

func TestAddIssueAndHeadline(t *testing.T) {
	s := newStore(t)

	details := "see dashboard"
	issue, err := s.AddIssue("1", store.NewIssue{Description: "Churn", Reporter: "You", Details: &details, CreatedAt: "2024-02-02"})
	require.NoError(t, err)
	assert.False(t, issue.IsResolved())
	assert.Nil(t, issue.Resolved)
	require.NotNil(t, issue.Details)
	assert.Equal(t, "see dashboard", *issue.Details)
	assert.Equal(t, "", issue.Category)

	h, err := s.AddHeadline("1", store.NewHeadline{Content: "Record month", Reporter: "John Doe"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", h.CreatedAt)

	m, _ := s.FindMeeting("1")
	assert.Equal(t, issue.ID, m.Issues[len(m.Issues)-1].ID)
	assert.Equal(t, h, m.Headlines[len(m.Headlines)-1])

	_, err = s.AddHeadline("1", store.NewHeadline{})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSetMemberRatingClamps(t *testing.T) {
	s := newStore(t)

	cases := []struct {
		in, want int
	}{
		{in: 7, want: 7},
		{in: 0, want: 1},
		{in: -3, want: 1},
		{in: 11, want: 10},
		{in: 10, want: 10},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			got, err := s.SetMemberRating("1", "John Doe", tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			m, _ := s.FindMeeting("1")
			assert.Equal(t, tc.want, m.MemberRatings["John Doe"])
		})
	}

	_, err := s.SetMemberRating("1", "", 5)
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSendMessage(t *testing.T) {
	s := newStore(t)

	msg, err := s.SendMessage("2", "hello team")
	require.NoError(t, err)
	assert.Equal(t, domain.Message{Content: "hello team", Timestamp: "2024-03-04T09:30:00Z"}, msg)

	m, _ := s.FindMeeting("2")
	assert.Equal(t, []domain.Message{msg}, m.Messages)
}

func issueIDs(issues []domain.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.ID
	}
	return out
}

func TestReorderIssues(t *testing.T) {
	s := newStore(t)

	issues, err := s.ReorderIssues("1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"402", "403", "401"}, issueIDs(issues))

	issues, err = s.ReorderIssues("1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"401", "402", "403"}, issueIDs(issues))
}

func TestReorderIssuesRejectsOutOfRange(t *testing.T) {
	s := newStore(t)

	for _, idx := range [][2]int{{-1, 0}, {0, 3}, {3, 0}, {0, -2}} {
		_, err := s.ReorderIssues("1", idx[0], idx[1])
		require.ErrorIs(t, err, store.ErrInvalidInput, "indexes %v", idx)
	}
	m, _ := s.FindMeeting("1")
	assert.Equal(t, []string{"401", "402", "403"}, issueIDs(m.Issues))
}

func TestResolveIssue(t *testing.T) {
	s := newStore(t)

	issue, err := s.ResolveIssue("1", "402", "Budget approved")
	require.NoError(t, err)
	assert.True(t, issue.IsResolved())
	require.NotNil(t, issue.Resolution)
	assert.Equal(t, "Budget approved", *issue.Resolution)
	require.NotNil(t, issue.ResolvedAt)
	assert.Equal(t, "2024-03-04T09:30:00Z", *issue.ResolvedAt)

	_, err = s.ResolveIssue("1", "402", "Something else")
	require.ErrorIs(t, err, store.ErrAlreadyResolved)
	m, _ := s.FindMeeting("1")
	assert.Equal(t, "Budget approved", *m.Issues[1].Resolution)
}

func TestResolveIssueValidation(t *testing.T) {
	s := newStore(t)

	_, err := s.ResolveIssue("1", "401", "   ")
	require.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = s.ResolveIssue("1", "nope", "done")
	require.ErrorIs(t, err, store.ErrNotFound)

	m, _ := s.FindMeeting("1")
	assert.False(t, m.Issues[0].IsResolved())
}

func TestCheckIn(t *testing.T) {
	s := newStore(t)

	m, err := s.CheckIn("1", []string{"You", "Jane Smith", "You"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Smith", "You"}, m.Attendees)
	assert.Equal(t, "2024-03-04T09:30:00Z", m.StartedAt)

	_, err = s.CheckIn("1", []string{"You"})
	require.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = s.CheckIn("1", []string{"You", "Stranger"})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSelectMeeting(t *testing.T) {
	s := newStore(t)

	_, ok := s.CurrentMeeting()
	assert.False(t, ok)

	require.NoError(t, s.SelectMeeting("2"))
	m, ok := s.CurrentMeeting()
	require.True(t, ok)
	assert.Equal(t, "2", m.ID)

	require.ErrorIs(t, s.SelectMeeting("9"), store.ErrNotFound)
	require.NoError(t, s.SelectMeeting(""))
	_, ok = s.CurrentMeeting()
	assert.False(t, ok)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := newStore(t)

	var got []store.Change
	unsubscribe := s.Subscribe(func(c store.Change) { got = append(got, c) })

	_, err := s.SetTodoCompleted("1", "301", true)
	require.NoError(t, err)
	_, err = s.SetTodoCompleted("1", "missing", true)
	require.Error(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "todo.updated", got[0].Type)
	assert.Equal(t, "1", got[0].MeetingID)
	assert.Equal(t, "301", got[0].EntityID)
	assert.Equal(t, "1001", got[0].ActorID)
	assert.True(t, got[0].Meeting.Todos[0].Completed)

	unsubscribe()
	_, err = s.UpdateConclusion("1", "after")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestObserverCanQueryStore(t *testing.T) {
	s := newStore(t)

	var seen string
	s.Subscribe(func(c store.Change) {
		m, err := s.FindMeeting(c.MeetingID)
		if err == nil {
			seen = m.Conclusion
		}
	})
	_, err := s.UpdateConclusion("2", "observed")
	require.NoError(t, err)
	assert.Equal(t, "observed", seen)
}

func TestObserversSeeCommitOrder(t *testing.T) {
	s := newStore(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu  sync.Mutex
		got []bool
	)
	first := true
	s.Subscribe(func(c store.Change) {
		done, _ := c.Payload["completed"].(bool)
		mu.Lock()
		block := first
		first = false
		mu.Unlock()
		if block {
			close(entered)
			<-release
		}
		mu.Lock()
		got = append(got, done)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.SetTodoCompleted("1", "301", true)
		assert.NoError(t, err)
	}()
	<-entered
	go func() {
		defer wg.Done()
		_, err := s.SetTodoCompleted("1", "301", false)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool {
		m, err := s.FindMeeting("1")
		return err == nil && !m.Todos[0].Completed
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	m, err := s.FindMeeting("1")
	require.NoError(t, err)
	assert.False(t, m.Todos[0].Completed)
	assert.Equal(t, []bool{true, false}, got)
}

func TestObserverPanicDoesNotFailMutation(t *testing.T) {
	s := newStore(t)
	s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen []string
	s.Subscribe(func(c store.Change) { panic("observer broke") })
	s.Subscribe(func(c store.Change) { seen = append(seen, c.Type) })

	m, err := s.UpdateConclusion("1", "wrapped up")
	require.NoError(t, err)
	assert.Equal(t, "wrapped up", m.Conclusion)
	assert.Equal(t, []string{"meeting.conclusion.updated"}, seen)

	got, err := s.FindMeeting("1")
	require.NoError(t, err)
	assert.Equal(t, "wrapped up", got.Conclusion)
}

func TestErrorsWrapSentinels(t *testing.T) {
	s := newStore(t)

	_, err := s.AddIssue("ghost", store.NewIssue{Description: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Contains(t, err.Error(), "ghost")
}
