package server

import (
	"encoding/json"

	"levelten/internal/domain"
)

// Request payloads

type ConclusionRequest struct {
	Conclusion string `json:"conclusion"`
}

type CreateRockRequest struct {
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" example:"2024-03-04"`
}

type UpdateRockRequest struct {
	Status domain.RockStatus `json:"status" enum:"on-track,off-track,completed"`
}

type CreateTodoRequest struct {
	Description string `json:"description"`
	Assignee    string `json:"assignee,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" example:"2024-03-04"`
}

type UpdateTodoRequest struct {
	Completed bool `json:"completed"`
}

type CreateHeadlineRequest struct {
	Content   string `json:"content"`
	Reporter  string `json:"reporter,omitempty"`
	CreatedAt string `json:"created_at,omitempty" example:"2024-03-04"`
}

type CreateIssueRequest struct {
	Description string  `json:"description"`
	Reporter    string  `json:"reporter,omitempty"`
	Category    string  `json:"category,omitempty"`
	Details     *string `json:"details,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty" example:"2024-03-04"`
}

type ReorderIssuesRequest struct {
	OldIndex int `json:"old_index"`
	NewIndex int `json:"new_index"`
}

type ResolveIssueRequest struct {
	Resolution string `json:"resolution"`
}

type RatingRequest struct {
	Rating int `json:"rating" example:"8"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

type CheckInRequest struct {
	Attendees []string `json:"attendees"`
}

type SessionRequest struct {
	MeetingID string `json:"meeting_id" doc:"Meeting to select; empty clears the selection"`
}

// Response payloads

type RatingsResponse struct {
	MeetingID string         `json:"meeting_id"`
	Ratings   map[string]int `json:"ratings"`
	Average   float64        `json:"average"`
}

type RatingResponse struct {
	MeetingID string `json:"meeting_id"`
	Member    string `json:"member"`
	Rating    int    `json:"rating"`
}

type SessionResponse struct {
	User      domain.User     `json:"user"`
	MeetingID string          `json:"meeting_id,omitempty"`
	Meeting   *domain.Meeting `json:"meeting,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	MeetingID  string         `json:"meeting_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		MeetingID:  e.MeetingID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func ratingsResponse(m domain.Meeting, ratings map[string]int, avg float64) RatingsResponse {
	return RatingsResponse{MeetingID: m.ID, Ratings: ratings, Average: avg}
}
