package store

import (
	"math"
	"sort"
	"time"

	"levelten/internal/domain"
)

// ClampRating bounds a rating to [MinRating, MaxRating].
func ClampRating(rating int) int {
	if rating < MinRating {
		return MinRating
	}
	if rating > MaxRating {
		return MaxRating
	}
	return rating
}

// EffectiveRating is the rating shown for a member: the stored value, or
// DefaultRating when the member has not been rated yet.
func EffectiveRating(m domain.Meeting, member string) int {
	if r, ok := m.MemberRatings[member]; ok {
		return r
	}
	return DefaultRating
}

// EffectiveRatings returns the effective rating of every roster member.
func EffectiveRatings(m domain.Meeting) map[string]int {
	out := make(map[string]int, len(m.Members))
	for _, member := range m.Members {
		out[member] = EffectiveRating(m, member)
	}
	return out
}

// AverageRating is 0 until someone has been rated. After that it averages the
// effective rating of every member, so unrated members count as DefaultRating.
// The result is rounded to one decimal place.
func AverageRating(m domain.Meeting) float64 {
	if len(m.MemberRatings) == 0 {
		return 0
	}
	var sum, n int
	if len(m.Members) == 0 {
		for _, r := range m.MemberRatings {
			sum += r
			n++
		}
	} else {
		for _, member := range m.Members {
			sum += EffectiveRating(m, member)
			n++
		}
	}
	return math.Round(float64(sum)/float64(n)*10) / 10
}

// GroupByDayOfWeek groups meetings by weekday. Groups iterate Monday through
// Sunday whatever the input order; unknown day names come last in first-seen
// order. Days without meetings are omitted.
func GroupByDayOfWeek(meetings []domain.Meeting) []domain.DayGroup {
	byDay := map[string][]domain.Meeting{}
	var unknown []string
	for _, m := range meetings {
		if _, seen := byDay[m.DayOfWeek]; !seen && domain.WeekdayIndex(m.DayOfWeek) < 0 {
			unknown = append(unknown, m.DayOfWeek)
		}
		byDay[m.DayOfWeek] = append(byDay[m.DayOfWeek], m.Clone())
	}
	groups := []domain.DayGroup{}
	for _, day := range append(append([]string{}, domain.Weekdays...), unknown...) {
		if ms, ok := byDay[day]; ok {
			groups = append(groups, domain.DayGroup{Day: day, Meetings: ms})
		}
	}
	return groups
}

// PersonalItems collects what member owns, is assigned, or reported across
// meetings, keeping meeting order and then collection order.
func PersonalItems(meetings []domain.Meeting, member string) domain.PersonalItems {
	out := domain.PersonalItems{
		Member:    member,
		Rocks:     []domain.PersonalRock{},
		Todos:     []domain.PersonalTodo{},
		Headlines: []domain.PersonalHeadline{},
		Issues:    []domain.PersonalIssue{},
	}
	for _, m := range meetings {
		ref := domain.MeetingRef{MeetingID: m.ID, MeetingName: m.Name}
		for _, r := range m.Rocks {
			if r.Owner == member {
				out.Rocks = append(out.Rocks, domain.PersonalRock{Rock: r, MeetingRef: ref})
			}
		}
		for _, t := range m.Todos {
			if t.Assignee == member {
				out.Todos = append(out.Todos, domain.PersonalTodo{Todo: t, MeetingRef: ref})
			}
		}
		for _, h := range m.Headlines {
			if h.Reporter == member {
				out.Headlines = append(out.Headlines, domain.PersonalHeadline{Headline: h, MeetingRef: ref})
			}
		}
		for _, is := range m.Issues {
			if is.Reporter == member {
				out.Issues = append(out.Issues, domain.PersonalIssue{Issue: is.Clone(), MeetingRef: ref})
			}
		}
	}
	return out
}

// History lists completed todos, completed rocks, and resolved issues grouped
// by day, newest day first.
func History(m domain.Meeting) []domain.HistoryGroup {
	var items []domain.HistoryItem
	for _, t := range m.Todos {
		if !t.Completed {
			continue
		}
		items = append(items, domain.HistoryItem{
			ID:          t.ID,
			Type:        "todo",
			Description: t.Description,
			Date:        dateOf(firstNonEmpty(t.CompletedAt, t.CreatedAt)),
			Owner:       t.Assignee,
		})
	}
	for _, r := range m.Rocks {
		if r.Status != domain.RockCompleted {
			continue
		}
		items = append(items, domain.HistoryItem{
			ID:          r.ID,
			Type:        "rock",
			Description: r.Description,
			Date:        dateOf(firstNonEmpty(r.CompletedAt, r.CreatedAt)),
			Owner:       r.Owner,
		})
	}
	for _, is := range m.Issues {
		if !is.IsResolved() {
			continue
		}
		resolvedAt := ""
		if is.ResolvedAt != nil {
			resolvedAt = *is.ResolvedAt
		}
		items = append(items, domain.HistoryItem{
			ID:          is.ID,
			Type:        "issue",
			Description: is.Description,
			Date:        dateOf(firstNonEmpty(resolvedAt, is.CreatedAt)),
			Owner:       is.Reporter,
			Category:    is.Category,
		})
	}

	index := map[string]int{}
	groups := []domain.HistoryGroup{}
	for _, item := range items {
		i, ok := index[item.Date]
		if !ok {
			i = len(groups)
			index[item.Date] = i
			groups = append(groups, domain.HistoryGroup{Date: item.Date})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups
}

// dateOf reduces an RFC 3339 timestamp or a plain date to YYYY-MM-DD. Other
// values are returned unchanged.
func dateOf(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(time.DateOnly)
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// History returns the completed-work history of one meeting.
func (s *Store) History(meetingID string) ([]domain.HistoryGroup, error) {
	m, err := s.FindMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	return History(m), nil
}

// PersonalItems returns the items of member across every meeting.
func (s *Store) PersonalItems(member string) domain.PersonalItems {
	return PersonalItems(s.Meetings(), member)
}
