package domain

// Weekdays in canonical display order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayIndex returns the canonical position of a weekday name, or -1.
func WeekdayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

type RockStatus string

const (
	RockOnTrack   RockStatus = "on-track"
	RockOffTrack  RockStatus = "off-track"
	RockCompleted RockStatus = "completed"
)

func (s RockStatus) Valid() bool {
	switch s {
	case RockOnTrack, RockOffTrack, RockCompleted:
		return true
	}
	return false
}

type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Meeting struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	DayOfWeek     string         `json:"day_of_week" yaml:"day_of_week" enum:"Monday,Tuesday,Wednesday,Thursday,Friday,Saturday,Sunday"`
	Time          string         `json:"time" yaml:"time"`
	Duration      string         `json:"duration" yaml:"duration"`
	Members       []string       `json:"members" yaml:"members"`
	Rocks         []Rock         `json:"rocks" yaml:"rocks"`
	Headlines     []Headline     `json:"headlines" yaml:"headlines"`
	Todos         []Todo         `json:"todos" yaml:"todos"`
	Issues        []Issue        `json:"issues" yaml:"issues"`
	Conclusion    string         `json:"conclusion" yaml:"conclusion"`
	MemberRatings map[string]int `json:"member_ratings,omitempty" yaml:"member_ratings,omitempty"`
	Messages      []Message      `json:"messages,omitempty" yaml:"messages,omitempty"`
	Attendees     []string       `json:"attendees,omitempty" yaml:"attendees,omitempty"`
	StartedAt     string         `json:"started_at,omitempty" yaml:"started_at,omitempty" format:"date-time"`
}

// HasMember reports whether name is on the meeting roster.
func (m Meeting) HasMember(name string) bool {
	for _, member := range m.Members {
		if member == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the meeting.
func (m Meeting) Clone() Meeting {
	out := m
	out.Members = cloneSlice(m.Members)
	out.Rocks = cloneSlice(m.Rocks)
	out.Headlines = cloneSlice(m.Headlines)
	out.Todos = cloneSlice(m.Todos)
	out.Issues = make([]Issue, len(m.Issues))
	for i, is := range m.Issues {
		out.Issues[i] = is.Clone()
	}
	out.Messages = cloneSlice(m.Messages)
	out.Attendees = cloneSlice(m.Attendees)
	if m.MemberRatings != nil {
		out.MemberRatings = make(map[string]int, len(m.MemberRatings))
		for k, v := range m.MemberRatings {
			out.MemberRatings[k] = v
		}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

type Rock struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	Owner       string     `json:"owner" yaml:"owner"`
	Status      RockStatus `json:"status" yaml:"status" enum:"on-track,off-track,completed"`
	CreatedAt   string     `json:"created_at" yaml:"created_at"`
	CompletedAt string     `json:"completed_at,omitempty" yaml:"completed_at,omitempty" format:"date-time"`
}

type Headline struct {
	ID        string `json:"id" yaml:"id"`
	Content   string `json:"content" yaml:"content"`
	Reporter  string `json:"reporter" yaml:"reporter"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

type Todo struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Assignee    string `json:"assignee" yaml:"assignee"`
	Completed   bool   `json:"completed" yaml:"completed"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
	CompletedAt string `json:"completed_at,omitempty" yaml:"completed_at,omitempty" format:"date-time"`
}

type Issue struct {
	ID          string  `json:"id" yaml:"id"`
	Description string  `json:"description" yaml:"description"`
	Reporter    string  `json:"reporter" yaml:"reporter"`
	Category    string  `json:"category" yaml:"category"`
	Details     *string `json:"details,omitempty" yaml:"details,omitempty"`
	CreatedAt   string  `json:"created_at" yaml:"created_at"`
	Resolved    *bool   `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	Resolution  *string `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	ResolvedAt  *string `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// IsResolved treats an unset resolved flag as unresolved.
func (i Issue) IsResolved() bool {
	return i.Resolved != nil && *i.Resolved
}

func (i Issue) Clone() Issue {
	out := i
	out.Details = clonePtr(i.Details)
	out.Resolved = clonePtr(i.Resolved)
	out.Resolution = clonePtr(i.Resolution)
	out.ResolvedAt = clonePtr(i.ResolvedAt)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type Message struct {
	Content   string `json:"content" yaml:"content"`
	Timestamp string `json:"timestamp" yaml:"timestamp" format:"date-time"`
}

// MeetingRef tags a personal item with the meeting it came from.
type MeetingRef struct {
	MeetingID   string `json:"meeting_id"`
	MeetingName string `json:"meeting_name"`
}

type PersonalRock struct {
	Rock
	MeetingRef
}

type PersonalTodo struct {
	Todo
	MeetingRef
}

type PersonalHeadline struct {
	Headline
	MeetingRef
}

type PersonalIssue struct {
	Issue
	MeetingRef
}

// PersonalItems is the cross-meeting "my items" view for one member.
type PersonalItems struct {
	Member    string             `json:"member"`
	Rocks     []PersonalRock     `json:"rocks"`
	Todos     []PersonalTodo     `json:"todos"`
	Headlines []PersonalHeadline `json:"headlines"`
	Issues    []PersonalIssue    `json:"issues"`
}

// DayGroup holds the meetings that fall on one weekday.
type DayGroup struct {
	Day      string    `json:"day"`
	Meetings []Meeting `json:"meetings"`
}

type HistoryItem struct {
	ID          string `json:"id"`
	Type        string `json:"type" enum:"rock,todo,issue"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Owner       string `json:"owner,omitempty"`
	Category    string `json:"category,omitempty"`
}

// HistoryGroup is one day of completed work.
type HistoryGroup struct {
	Date  string        `json:"date"`
	Items []HistoryItem `json:"items"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	MeetingID  string `json:"meeting_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
