// Package store owns the canonical in-memory list of meetings and every
// operation that reads or changes it.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"levelten/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAlreadyResolved = errors.New("issue already resolved")
)

const (
	MinRating     = 1
	MaxRating     = 10
	DefaultRating = 5

	// MinAttendees is the check-in quorum needed to start a meeting.
	MinAttendees = 2
)

// Change describes one committed mutation. Meeting is the updated snapshot.
type Change struct {
	Type       string
	MeetingID  string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    map[string]any
	Meeting    domain.Meeting
}

type Observer func(Change)

type subscription struct {
	id int
	fn Observer
}

// Store is safe for concurrent use. Writers are serialized; observers run
// after the write lock is released and see changes in commit order. An
// observer may read the store but must not mutate it.
type Store struct {
	// Now, NewID and Logger may be replaced before the store is shared.
	Now    func() time.Time
	NewID  func(kind string) string
	Logger *slog.Logger

	mu               sync.RWMutex
	meetings         []domain.Meeting
	currentUser      domain.User
	currentMeetingID string
	pending          []Change

	obsMu     sync.Mutex
	observers []subscription
	nextObsID int

	// dispatchMu is held by the goroutine draining pending.
	dispatchMu sync.Mutex
}

// New builds a store over a copy of meetings.
func New(user domain.User, meetings []domain.Meeting) *Store {
	s := &Store{
		Now:         time.Now,
		NewID:       newID,
		currentUser: user,
	}
	s.meetings = make([]domain.Meeting, 0, len(meetings))
	for _, m := range meetings {
		s.meetings = append(s.meetings, normalize(m.Clone()))
	}
	return s
}

func newID(kind string) string {
	return kind + "-" + uuid.NewString()
}

func normalize(m domain.Meeting) domain.Meeting {
	if m.Members == nil {
		m.Members = []string{}
	}
	if m.Rocks == nil {
		m.Rocks = []domain.Rock{}
	}
	if m.Headlines == nil {
		m.Headlines = []domain.Headline{}
	}
	if m.Todos == nil {
		m.Todos = []domain.Todo{}
	}
	if m.Issues == nil {
		m.Issues = []domain.Issue{}
	}
	return m
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Store) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

// freshID returns an id for kind that taken does not report as used.
func (s *Store) freshID(kind string, taken func(string) bool) string {
	gen := s.NewID
	if gen == nil {
		gen = newID
	}
	id := gen(kind)
	for taken(id) {
		id = newID(kind)
	}
	return id
}

// Subscribe registers fn for every committed mutation and returns a function
// that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// flush delivers queued changes in commit order. A caller returns only after
// its own change has been delivered, by itself or by the goroutine that held
// dispatchMu before it.
func (s *Store) flush() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		c := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.notify(c)
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.Lock()
	subs := make([]subscription, len(s.observers))
	copy(subs, s.observers)
	s.obsMu.Unlock()
	for _, sub := range subs {
		cc := c
		cc.Meeting = c.Meeting.Clone()
		s.deliver(sub.fn, cc)
	}
}

// deliver runs fn, logging a panic instead of failing the committed mutation.
func (s *Store) deliver(fn Observer, c Change) {
	defer func() {
		if r := recover(); r != nil {
			logger := s.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("store: observer panicked",
				"type", c.Type, "meeting_id", c.MeetingID, "entity_id", c.EntityID, "panic", r)
		}
	}()
	fn(c)
}

func (s *Store) indexOf(meetingID string) int {
	for i, m := range s.meetings {
		if m.ID == meetingID {
			return i
		}
	}
	return -1
}

// mutate applies fn to a copy of the meeting and swaps the copy in only when
// fn succeeds.
func (s *Store) mutate(meetingID string, fn func(m *domain.Meeting) (Change, error)) (domain.Meeting, error) {
	s.mu.Lock()
	idx := s.indexOf(meetingID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Meeting{}, fmt.Errorf("meeting %s: %w", meetingID, ErrNotFound)
	}
	next := s.meetings[idx].Clone()
	change, err := fn(&next)
	if err != nil {
		s.mu.Unlock()
		return domain.Meeting{}, err
	}
	s.meetings[idx] = next
	change.MeetingID = meetingID
	change.ActorID = s.currentUser.ID
	change.Meeting = next.Clone()
	s.pending = append(s.pending, change)
	s.mu.Unlock()

	s.flush()
	return next.Clone(), nil
}

// CurrentUser returns the identity used for "my items" views.
func (s *Store) CurrentUser() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser
}

// Meetings returns every meeting in store order.
func (s *Store) Meetings() []domain.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Meeting, len(s.meetings))
	for i, m := range s.meetings {
		out[i] = m.Clone()
	}
	return out
}

func (s *Store) FindMeeting(id string) (domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Meeting{}, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	return s.meetings[idx].Clone(), nil
}

// MeetingsForMember returns the meetings whose roster contains name.
func (s *Store) MeetingsForMember(name string) []domain.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Meeting{}
	for _, m := range s.meetings {
		if m.HasMember(name) {
			out = append(out, m.Clone())
		}
	}
	return out
}

// SelectMeeting marks a meeting as the current one. An empty id clears it.
func (s *Store) SelectMeeting(meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meetingID != "" && s.indexOf(meetingID) < 0 {
		return fmt.Errorf("meeting %s: %w", meetingID, ErrNotFound)
	}
	s.currentMeetingID = meetingID
	return nil
}

// CurrentMeeting returns the selected meeting, if any.
func (s *Store) CurrentMeeting() (domain.Meeting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentMeetingID == "" {
		return domain.Meeting{}, false
	}
	idx := s.indexOf(s.currentMeetingID)
	if idx < 0 {
		return domain.Meeting{}, false
	}
	return s.meetings[idx].Clone(), true
}

func (s *Store) UpdateConclusion(meetingID, text string) (domain.Meeting, error) {
	return s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		m.Conclusion = text
		return Change{
			Type:       "meeting.conclusion.updated",
			EntityKind: "meeting",
			EntityID:   meetingID,
			Payload:    map[string]any{"conclusion": text},
		}, nil
	})
}

type NewRock struct {
	Description string
	Owner       string
	CreatedAt   string
}

func (s *Store) AddRock(meetingID string, in NewRock) (domain.Rock, error) {
	if strings.TrimSpace(in.Description) == "" {
		return domain.Rock{}, fmt.Errorf("rock description is required: %w", ErrInvalidInput)
	}
	var rock domain.Rock
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		rock = domain.Rock{
			ID: s.freshID("rock", func(id string) bool {
				_, ok := findRock(m.Rocks, id)
				return ok
			}),
			Description: in.Description,
			Owner:       in.Owner,
			Status:      domain.RockOnTrack,
			CreatedAt:   s.orToday(in.CreatedAt),
		}
		m.Rocks = append(m.Rocks, rock)
		return Change{
			Type:       "rock.created",
			EntityKind: "rock",
			EntityID:   rock.ID,
			Payload:    map[string]any{"owner": rock.Owner, "status": string(rock.Status)},
		}, nil
	})
	return rock, err
}

func (s *Store) SetRockStatus(meetingID, rockID string, status domain.RockStatus) (domain.Rock, error) {
	if !status.Valid() {
		return domain.Rock{}, fmt.Errorf("rock status %q: %w", status, ErrInvalidInput)
	}
	var rock domain.Rock
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		idx, ok := findRock(m.Rocks, rockID)
		if !ok {
			return Change{}, fmt.Errorf("rock %s: %w", rockID, ErrNotFound)
		}
		r := &m.Rocks[idx]
		from := r.Status
		r.Status = status
		switch {
		case status == domain.RockCompleted && from != domain.RockCompleted:
			r.CompletedAt = s.timestamp()
		case status != domain.RockCompleted:
			r.CompletedAt = ""
		}
		rock = *r
		return Change{
			Type:       "rock.updated",
			EntityKind: "rock",
			EntityID:   rockID,
			Payload:    map[string]any{"from_status": string(from), "to_status": string(status)},
		}, nil
	})
	return rock, err
}

type NewTodo struct {
	Description string
	Assignee    string
	CreatedAt   string
}

func (s *Store) AddTodo(meetingID string, in NewTodo) (domain.Todo, error) {
	if strings.TrimSpace(in.Description) == "" {
		return domain.Todo{}, fmt.Errorf("todo description is required: %w", ErrInvalidInput)
	}
	var todo domain.Todo
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		todo = domain.Todo{
			ID: s.freshID("todo", func(id string) bool {
				_, ok := findTodo(m.Todos, id)
				return ok
			}),
			Description: in.Description,
			Assignee:    in.Assignee,
			Completed:   false,
			CreatedAt:   s.orToday(in.CreatedAt),
		}
		m.Todos = append(m.Todos, todo)
		return Change{
			Type:       "todo.created",
			EntityKind: "todo",
			EntityID:   todo.ID,
			Payload:    map[string]any{"assignee": todo.Assignee},
		}, nil
	})
	return todo, err
}

func (s *Store) SetTodoCompleted(meetingID, todoID string, completed bool) (domain.Todo, error) {
	var todo domain.Todo
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		idx, ok := findTodo(m.Todos, todoID)
		if !ok {
			return Change{}, fmt.Errorf("todo %s: %w", todoID, ErrNotFound)
		}
		t := &m.Todos[idx]
		switch {
		case completed && !t.Completed:
			t.CompletedAt = s.timestamp()
		case !completed:
			t.CompletedAt = ""
		}
		t.Completed = completed
		todo = *t
		return Change{
			Type:       "todo.updated",
			EntityKind: "todo",
			EntityID:   todoID,
			Payload:    map[string]any{"completed": completed},
		}, nil
	})
	return todo, err
}

type NewHeadline struct {
	Content   string
	Reporter  string
	CreatedAt string
}

func (s *Store) AddHeadline(meetingID string, in NewHeadline) (domain.Headline, error) {
	if strings.TrimSpace(in.Content) == "" {
		return domain.Headline{}, fmt.Errorf("headline content is required: %w", ErrInvalidInput)
	}
	var h domain.Headline
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		h = domain.Headline{
			ID: s.freshID("headline", func(id string) bool {
				for _, existing := range m.Headlines {
					if existing.ID == id {
						return true
					}
				}
				return false
			}),
			Content:   in.Content,
			Reporter:  in.Reporter,
			CreatedAt: s.orToday(in.CreatedAt),
		}
		m.Headlines = append(m.Headlines, h)
		return Change{
			Type:       "headline.created",
			EntityKind: "headline",
			EntityID:   h.ID,
			Payload:    map[string]any{"reporter": h.Reporter},
		}, nil
	})
	return h, err
}

type NewIssue struct {
	Description string
	Reporter    string
	Category    string
	Details     *string
	CreatedAt   string
}

func (s *Store) AddIssue(meetingID string, in NewIssue) (domain.Issue, error) {
	if strings.TrimSpace(in.Description) == "" {
		return domain.Issue{}, fmt.Errorf("issue description is required: %w", ErrInvalidInput)
	}
	var issue domain.Issue
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		issue = domain.Issue{
			ID: s.freshID("issue", func(id string) bool {
				_, ok := findIssue(m.Issues, id)
				return ok
			}),
			Description: in.Description,
			Reporter:    in.Reporter,
			Category:    in.Category,
			CreatedAt:   s.orToday(in.CreatedAt),
		}
		if in.Details != nil {
			d := *in.Details
			issue.Details = &d
		}
		m.Issues = append(m.Issues, issue)
		return Change{
			Type:       "issue.created",
			EntityKind: "issue",
			EntityID:   issue.ID,
			Payload:    map[string]any{"reporter": issue.Reporter, "category": issue.Category},
		}, nil
	})
	return issue.Clone(), err
}

// ReorderIssues moves the issue at oldIndex to newIndex. Both indexes refer
// to the current sequence and must be in range.
func (s *Store) ReorderIssues(meetingID string, oldIndex, newIndex int) ([]domain.Issue, error) {
	var issues []domain.Issue
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		n := len(m.Issues)
		if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
			return Change{}, fmt.Errorf("reorder %d -> %d with %d issues: %w", oldIndex, newIndex, n, ErrInvalidInput)
		}
		m.Issues = moveIssue(m.Issues, oldIndex, newIndex)
		issues = make([]domain.Issue, len(m.Issues))
		for i, is := range m.Issues {
			issues[i] = is.Clone()
		}
		return Change{
			Type:       "issue.reordered",
			EntityKind: "issue",
			EntityID:   m.Issues[newIndex].ID,
			Payload:    map[string]any{"old_index": oldIndex, "new_index": newIndex},
		}, nil
	})
	return issues, err
}

func moveIssue(in []domain.Issue, from, to int) []domain.Issue {
	moved := in[from]
	out := make([]domain.Issue, 0, len(in))
	out = append(out, in[:from]...)
	out = append(out, in[from+1:]...)
	out = append(out[:to], append([]domain.Issue{moved}, out[to:]...)...)
	return out
}

// ResolveIssue closes an issue. Resolution is one-way: a second attempt
// returns ErrAlreadyResolved and keeps the first resolution.
func (s *Store) ResolveIssue(meetingID, issueID, resolution string) (domain.Issue, error) {
	if strings.TrimSpace(resolution) == "" {
		return domain.Issue{}, fmt.Errorf("resolution text is required: %w", ErrInvalidInput)
	}
	var issue domain.Issue
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		idx, ok := findIssue(m.Issues, issueID)
		if !ok {
			return Change{}, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
		}
		is := &m.Issues[idx]
		if is.IsResolved() {
			return Change{}, fmt.Errorf("issue %s: %w", issueID, ErrAlreadyResolved)
		}
		resolved := true
		text := resolution
		at := s.timestamp()
		is.Resolved = &resolved
		is.Resolution = &text
		is.ResolvedAt = &at
		issue = is.Clone()
		return Change{
			Type:       "issue.resolved",
			EntityKind: "issue",
			EntityID:   issueID,
			Payload:    map[string]any{"resolution": resolution},
		}, nil
	})
	return issue, err
}

// SetMemberRating stores a rating clamped to [MinRating, MaxRating] and
// returns the stored value.
func (s *Store) SetMemberRating(meetingID, member string, rating int) (int, error) {
	if strings.TrimSpace(member) == "" {
		return 0, fmt.Errorf("member is required: %w", ErrInvalidInput)
	}
	stored := ClampRating(rating)
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		if m.MemberRatings == nil {
			m.MemberRatings = map[string]int{}
		}
		m.MemberRatings[member] = stored
		return Change{
			Type:       "rating.updated",
			EntityKind: "rating",
			EntityID:   member,
			Payload:    map[string]any{"requested": rating, "rating": stored},
		}, nil
	})
	return stored, err
}

func (s *Store) SendMessage(meetingID, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, fmt.Errorf("message content is required: %w", ErrInvalidInput)
	}
	var msg domain.Message
	_, err := s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		msg = domain.Message{Content: content, Timestamp: s.timestamp()}
		m.Messages = append(m.Messages, msg)
		return Change{
			Type:       "message.sent",
			EntityKind: "message",
			EntityID:   fmt.Sprintf("%d", len(m.Messages)-1),
			Payload:    map[string]any{"content": content},
		}, nil
	})
	return msg, err
}

// CheckIn records who is present. Attendees must be roster members and at
// least MinAttendees of them must be present.
func (s *Store) CheckIn(meetingID string, attendees []string) (domain.Meeting, error) {
	return s.mutate(meetingID, func(m *domain.Meeting) (Change, error) {
		present := make(map[string]bool, len(attendees))
		for _, a := range attendees {
			if !m.HasMember(a) {
				return Change{}, fmt.Errorf("%q is not a member of meeting %s: %w", a, m.ID, ErrInvalidInput)
			}
			present[a] = true
		}
		var ordered []string
		for _, member := range m.Members {
			if present[member] {
				ordered = append(ordered, member)
			}
		}
		if len(ordered) < MinAttendees {
			return Change{}, fmt.Errorf("at least %d attendees required, got %d: %w", MinAttendees, len(ordered), ErrInvalidInput)
		}
		m.Attendees = ordered
		m.StartedAt = s.timestamp()
		return Change{
			Type:       "meeting.checked_in",
			EntityKind: "meeting",
			EntityID:   m.ID,
			Payload:    map[string]any{"attendees": ordered},
		}, nil
	})
}

func (s *Store) orToday(date string) string {
	if strings.TrimSpace(date) == "" {
		return s.today()
	}
	return date
}

func findRock(rocks []domain.Rock, id string) (int, bool) {
	for i, r := range rocks {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

func findTodo(todos []domain.Todo, id string) (int, bool) {
	for i, t := range todos {
		if t.ID == id {
			return i, true
		}
	}
	return -1, false
}

func findIssue(issues []domain.Issue, id string) (int, bool) {
	for i, is := range issues {
		if is.ID == id {
			return i, true
		}
	}
	return -1, false
}
