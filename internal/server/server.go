package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"levelten/internal/domain"
	"levelten/internal/events"
	"levelten/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Store *store.Store
	// Journal is optional; without it the events endpoint reports not_found.
	Journal  *events.Journal
	BasePath string
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"meeting 42: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T `json:"body"`
}

func respond[T any](v T) *output[T] {
	return &output[T]{Body: v}
}

type meetingPath struct {
	MeetingID string `path:"meeting_id"`
}

// New returns an HTTP handler exposing the meetings API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	hcfg := huma.DefaultConfig("Level 10 Meetings API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := cfg.Store
	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group, s)
	registerMeetings(group, s)
	registerRatings(group, s)
	registerRocks(group, s)
	registerTodos(group, s)
	registerHeadlines(group, s)
	registerIssues(group, s)
	registerMessages(group, s)
	registerSession(group, s)
	registerEvents(group, cfg.Journal)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, store.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, store.ErrAlreadyResolved):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Level 10 Meetings API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
	}, func(ctx context.Context, _ *struct{}) (*output[domain.User], error) {
		return respond(s.CurrentUser()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-items",
		Method:      http.MethodGet,
		Path:        "/me/items",
		Summary:     "Rocks, to-dos, headlines and issues owned by the current user",
	}, func(ctx context.Context, _ *struct{}) (*output[domain.PersonalItems], error) {
		return respond(s.PersonalItems(s.CurrentUser().Name)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "member-items",
		Method:      http.MethodGet,
		Path:        "/members/{member}/items",
		Summary:     "Items owned by a member across meetings",
	}, func(ctx context.Context, input *struct {
		Member string `path:"member"`
	}) (*output[domain.PersonalItems], error) {
		return respond(s.PersonalItems(input.Member)), nil
	})
}

func registerMeetings(api huma.API, s *store.Store) {
	type memberQuery struct {
		Member string `query:"member" doc:"Only meetings whose roster contains this member"`
	}
	list := func(member string) []domain.Meeting {
		if member == "" {
			return s.Meetings()
		}
		return s.MeetingsForMember(member)
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
	}, func(ctx context.Context, input *memberQuery) (*output[[]domain.Meeting], error) {
		return respond(list(input.Member)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "meetings-by-day",
		Method:      http.MethodGet,
		Path:        "/meetings/by-day",
		Summary:     "Meetings grouped by day of week",
	}, func(ctx context.Context, input *memberQuery) (*output[[]domain.DayGroup], error) {
		return respond(store.GroupByDayOfWeek(list(input.Member))), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}",
		Summary:     "Get meeting",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *meetingPath) (*output[domain.Meeting], error) {
		m, err := s.FindMeeting(input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "meeting-history",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/history",
		Summary:     "Completed rocks, completed to-dos and resolved issues by date",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *meetingPath) (*output[[]domain.HistoryGroup], error) {
		groups, err := s.History(input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(groups), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-conclusion",
		Method:      http.MethodPut,
		Path:        "/meetings/{meeting_id}/conclusion",
		Summary:     "Replace the meeting conclusion",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      ConclusionRequest
	}) (*output[domain.Meeting], error) {
		m, err := s.UpdateConclusion(input.MeetingID, input.Body.Conclusion)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-in",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/check-in",
		Summary:     "Record attendance and start the meeting",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      CheckInRequest
	}) (*output[domain.Meeting], error) {
		m, err := s.CheckIn(input.MeetingID, input.Body.Attendees)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m), nil
	})
}

func registerRatings(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-ratings",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/ratings",
		Summary:     "Effective member ratings and their average",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *meetingPath) (*output[RatingsResponse], error) {
		m, err := s.FindMeeting(input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(ratingsResponse(m, store.EffectiveRatings(m), store.AverageRating(m))), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-rating",
		Method:      http.MethodPut,
		Path:        "/meetings/{meeting_id}/ratings/{member}",
		Summary:     "Rate the meeting for a member; values outside 1-10 are clamped",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Member    string `path:"member"`
		Body      RatingRequest
	}) (*output[RatingResponse], error) {
		stored, err := s.SetMemberRating(input.MeetingID, input.Member, input.Body.Rating)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(RatingResponse{MeetingID: input.MeetingID, Member: input.Member, Rating: stored}), nil
	})
}

func registerRocks(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-rock",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/rocks",
		Summary:     "Add a rock",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      CreateRockRequest
	}) (*output[domain.Rock], error) {
		rock, err := s.AddRock(input.MeetingID, store.NewRock{
			Description: input.Body.Description,
			Owner:       input.Body.Owner,
			CreatedAt:   input.Body.CreatedAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(rock), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-rock",
		Method:      http.MethodPatch,
		Path:        "/meetings/{meeting_id}/rocks/{rock_id}",
		Summary:     "Set rock status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		RockID    string `path:"rock_id"`
		Body      UpdateRockRequest
	}) (*output[domain.Rock], error) {
		rock, err := s.SetRockStatus(input.MeetingID, input.RockID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(rock), nil
	})
}

func registerTodos(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-todo",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/todos",
		Summary:     "Add a to-do",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      CreateTodoRequest
	}) (*output[domain.Todo], error) {
		todo, err := s.AddTodo(input.MeetingID, store.NewTodo{
			Description: input.Body.Description,
			Assignee:    input.Body.Assignee,
			CreatedAt:   input.Body.CreatedAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(todo), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-todo",
		Method:      http.MethodPatch,
		Path:        "/meetings/{meeting_id}/todos/{todo_id}",
		Summary:     "Mark a to-do done or not done",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		TodoID    string `path:"todo_id"`
		Body      UpdateTodoRequest
	}) (*output[domain.Todo], error) {
		todo, err := s.SetTodoCompleted(input.MeetingID, input.TodoID, input.Body.Completed)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(todo), nil
	})
}

func registerHeadlines(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-headline",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/headlines",
		Summary:     "Add a headline",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      CreateHeadlineRequest
	}) (*output[domain.Headline], error) {
		h, err := s.AddHeadline(input.MeetingID, store.NewHeadline{
			Content:   input.Body.Content,
			Reporter:  input.Body.Reporter,
			CreatedAt: input.Body.CreatedAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(h), nil
	})
}

func registerIssues(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-issue",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/issues",
		Summary:     "Add an issue",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      CreateIssueRequest
	}) (*output[domain.Issue], error) {
		issue, err := s.AddIssue(input.MeetingID, store.NewIssue{
			Description: input.Body.Description,
			Reporter:    input.Body.Reporter,
			Category:    input.Body.Category,
			Details:     input.Body.Details,
			CreatedAt:   input.Body.CreatedAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(issue), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-issues",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/issues/reorder",
		Summary:     "Move an issue to a new position",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      ReorderIssuesRequest
	}) (*output[[]domain.Issue], error) {
		issues, err := s.ReorderIssues(input.MeetingID, input.Body.OldIndex, input.Body.NewIndex)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(issues), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-issue",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/issues/{issue_id}/resolve",
		Summary:     "Resolve an issue",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		IssueID   string `path:"issue_id"`
		Body      ResolveIssueRequest
	}) (*output[domain.Issue], error) {
		issue, err := s.ResolveIssue(input.MeetingID, input.IssueID, input.Body.Resolution)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(issue), nil
	})
}

func registerMessages(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/meetings/{meeting_id}/messages",
		Summary:     "Post a message to the meeting",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Body      MessageRequest
	}) (*output[domain.Message], error) {
		msg, err := s.SendMessage(input.MeetingID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(msg), nil
	})
}

func registerSession(api huma.API, s *store.Store) {
	session := func() SessionResponse {
		res := SessionResponse{User: s.CurrentUser()}
		if m, ok := s.CurrentMeeting(); ok {
			res.MeetingID = m.ID
			res.Meeting = &m
		}
		return res
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/session",
		Summary:     "Current user and selected meeting",
	}, func(ctx context.Context, _ *struct{}) (*output[SessionResponse], error) {
		return respond(session()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-meeting",
		Method:      http.MethodPut,
		Path:        "/session",
		Summary:     "Select the current meeting",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SessionRequest
	}) (*output[SessionResponse], error) {
		if err := s.SelectMeeting(input.Body.MeetingID); err != nil {
			return nil, handleError(err)
		}
		return respond(session()), nil
	})
}

func registerEvents(api huma.API, j *events.Journal) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `query:"meeting_id"`
		Type      string `query:"type"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*output[paginatedEvents], error) {
		if j == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "journal is disabled", nil)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := j.Latest(ctx, events.Filter{
			Limit:     limit + 1,
			MeetingID: input.MeetingID,
			Type:      input.Type,
			BeforeID:  cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return respond(resp), nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
