package leveltensdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Level 10 meetings HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Rock struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type Headline struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Reporter  string `json:"reporter"`
	CreatedAt string `json:"created_at"`
}

type Todo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type Issue struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Reporter    string  `json:"reporter"`
	Category    string  `json:"category"`
	Details     *string `json:"details,omitempty"`
	CreatedAt   string  `json:"created_at"`
	Resolved    *bool   `json:"resolved,omitempty"`
	Resolution  *string `json:"resolution,omitempty"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

type Message struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Meeting is the full meeting document.
type Meeting struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	DayOfWeek     string         `json:"day_of_week"`
	Time          string         `json:"time"`
	Duration      string         `json:"duration"`
	Members       []string       `json:"members"`
	Rocks         []Rock         `json:"rocks"`
	Headlines     []Headline     `json:"headlines"`
	Todos         []Todo         `json:"todos"`
	Issues        []Issue        `json:"issues"`
	Conclusion    string         `json:"conclusion"`
	MemberRatings map[string]int `json:"member_ratings,omitempty"`
	Messages      []Message      `json:"messages,omitempty"`
	Attendees     []string       `json:"attendees,omitempty"`
	StartedAt     string         `json:"started_at,omitempty"`
}

type DayGroup struct {
	Day      string    `json:"day"`
	Meetings []Meeting `json:"meetings"`
}

type HistoryItem struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Owner       string `json:"owner,omitempty"`
	Category    string `json:"category,omitempty"`
}

type HistoryGroup struct {
	Date  string        `json:"date"`
	Items []HistoryItem `json:"items"`
}

// PersonalItems lists what one member owns across meetings. Each item carries
// meeting_id and meeting_name.
type PersonalItems struct {
	Member    string             `json:"member"`
	Rocks     []PersonalRock     `json:"rocks"`
	Todos     []PersonalTodo     `json:"todos"`
	Headlines []PersonalHeadline `json:"headlines"`
	Issues    []PersonalIssue    `json:"issues"`
}

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

type Ratings struct {
	MeetingID string         `json:"meeting_id"`
	Ratings   map[string]int `json:"ratings"`
	Average   float64        `json:"average"`
}

type Session struct {
	User      User     `json:"user"`
	MeetingID string   `json:"meeting_id,omitempty"`
	Meeting   *Meeting `json:"meeting,omitempty"`
}

// Event represents a journal entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	MeetingID  string         `json:"meeting_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// NewRock is the input for AddRock. Empty CreatedAt means today.
type NewRock struct {
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type NewTodo struct {
	Description string `json:"description"`
	Assignee    string `json:"assignee,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type NewHeadline struct {
	Content   string `json:"content"`
	Reporter  string `json:"reporter,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type NewIssue struct {
	Description string  `json:"description"`
	Reporter    string  `json:"reporter,omitempty"`
	Category    string  `json:"category,omitempty"`
	Details     *string `json:"details,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// MyItems returns the current user's items across meetings.
func (c *Client) MyItems(ctx context.Context) (PersonalItems, error) {
	var resp PersonalItems
	err := c.do(ctx, http.MethodGet, "me/items", nil, &resp)
	return resp, err
}

// MemberItems returns a member's items across meetings.
func (c *Client) MemberItems(ctx context.Context, member string) (PersonalItems, error) {
	var resp PersonalItems
	err := c.do(ctx, http.MethodGet, "members/"+url.PathEscape(member)+"/items", nil, &resp)
	return resp, err
}

// Meetings lists meetings, optionally only those member attends.
func (c *Client) Meetings(ctx context.Context, member string) ([]Meeting, error) {
	var resp []Meeting
	err := c.do(ctx, http.MethodGet, withQuery("meetings", url.Values{"member": {member}}), nil, &resp)
	return resp, err
}

// MeetingsByDay groups meetings by weekday.
func (c *Client) MeetingsByDay(ctx context.Context, member string) ([]DayGroup, error) {
	var resp []DayGroup
	err := c.do(ctx, http.MethodGet, withQuery("meetings/by-day", url.Values{"member": {member}}), nil, &resp)
	return resp, err
}

func (c *Client) Meeting(ctx context.Context, meetingID string) (Meeting, error) {
	var resp Meeting
	err := c.do(ctx, http.MethodGet, meetingPath(meetingID, ""), nil, &resp)
	return resp, err
}

func (c *Client) History(ctx context.Context, meetingID string) ([]HistoryGroup, error) {
	var resp []HistoryGroup
	err := c.do(ctx, http.MethodGet, meetingPath(meetingID, "history"), nil, &resp)
	return resp, err
}

func (c *Client) Ratings(ctx context.Context, meetingID string) (Ratings, error) {
	var resp Ratings
	err := c.do(ctx, http.MethodGet, meetingPath(meetingID, "ratings"), nil, &resp)
	return resp, err
}

// SetRating stores a rating and returns the clamped value the server kept.
func (c *Client) SetRating(ctx context.Context, meetingID, member string, rating int) (int, error) {
	var resp struct {
		Rating int `json:"rating"`
	}
	err := c.do(ctx, http.MethodPut, meetingPath(meetingID, "ratings/"+url.PathEscape(member)), map[string]any{"rating": rating}, &resp)
	return resp.Rating, err
}

func (c *Client) UpdateConclusion(ctx context.Context, meetingID, text string) (Meeting, error) {
	var resp Meeting
	err := c.do(ctx, http.MethodPut, meetingPath(meetingID, "conclusion"), map[string]any{"conclusion": text}, &resp)
	return resp, err
}

func (c *Client) AddRock(ctx context.Context, meetingID string, in NewRock) (Rock, error) {
	var resp Rock
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "rocks"), in, &resp)
	return resp, err
}

func (c *Client) SetRockStatus(ctx context.Context, meetingID, rockID, status string) (Rock, error) {
	var resp Rock
	err := c.do(ctx, http.MethodPatch, meetingPath(meetingID, "rocks/"+url.PathEscape(rockID)), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) AddTodo(ctx context.Context, meetingID string, in NewTodo) (Todo, error) {
	var resp Todo
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "todos"), in, &resp)
	return resp, err
}

func (c *Client) SetTodoCompleted(ctx context.Context, meetingID, todoID string, completed bool) (Todo, error) {
	var resp Todo
	err := c.do(ctx, http.MethodPatch, meetingPath(meetingID, "todos/"+url.PathEscape(todoID)), map[string]any{"completed": completed}, &resp)
	return resp, err
}

func (c *Client) AddHeadline(ctx context.Context, meetingID string, in NewHeadline) (Headline, error) {
	var resp Headline
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "headlines"), in, &resp)
	return resp, err
}

func (c *Client) AddIssue(ctx context.Context, meetingID string, in NewIssue) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "issues"), in, &resp)
	return resp, err
}

// ReorderIssues moves the issue at oldIndex to newIndex and returns the new order.
func (c *Client) ReorderIssues(ctx context.Context, meetingID string, oldIndex, newIndex int) ([]Issue, error) {
	var resp []Issue
	body := map[string]any{"old_index": oldIndex, "new_index": newIndex}
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "issues/reorder"), body, &resp)
	return resp, err
}

func (c *Client) ResolveIssue(ctx context.Context, meetingID, issueID, resolution string) (Issue, error) {
	var resp Issue
	endpoint := meetingPath(meetingID, "issues/"+url.PathEscape(issueID)+"/resolve")
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"resolution": resolution}, &resp)
	return resp, err
}

func (c *Client) SendMessage(ctx context.Context, meetingID, content string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "messages"), map[string]any{"content": content}, &resp)
	return resp, err
}

func (c *Client) CheckIn(ctx context.Context, meetingID string, attendees []string) (Meeting, error) {
	if attendees == nil {
		attendees = []string{}
	}
	var resp Meeting
	err := c.do(ctx, http.MethodPost, meetingPath(meetingID, "check-in"), map[string]any{"attendees": attendees}, &resp)
	return resp, err
}

func (c *Client) Session(ctx context.Context) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodGet, "session", nil, &resp)
	return resp, err
}

// SelectMeeting sets the current meeting. An empty id clears it.
func (c *Client) SelectMeeting(ctx context.Context, meetingID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPut, "session", map[string]any{"meeting_id": meetingID}, &resp)
	return resp, err
}

// EventFilter narrows an event listing. Zero values are omitted.
type EventFilter struct {
	Limit     int
	MeetingID string
	Type      string
	Cursor    string
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int, meetingID string) ([]Event, error) {
	page, err := c.EventsPage(ctx, EventFilter{Limit: limit, MeetingID: meetingID})
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, f EventFilter) (PaginatedEvents, error) {
	q := url.Values{"meeting_id": {f.MeetingID}, "type": {f.Type}, "cursor": {f.Cursor}}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func meetingPath(meetingID, p string) string {
	base := "meetings/" + url.PathEscape(meetingID)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

// withQuery drops empty values so optional filters stay off the URL.
func withQuery(endpoint string, q url.Values) string {
	for k, vs := range q {
		if len(vs) == 0 || vs[0] == "" {
			q.Del(k)
		}
	}
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}
