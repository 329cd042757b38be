package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"levelten/internal/domain"
)

//go:embed meetings.yaml
var defaultFixture []byte

// Fixture is the initial store content.
type Fixture struct {
	CurrentUser domain.User      `yaml:"current_user"`
	Meetings    []domain.Meeting `yaml:"meetings"`
}

// Default returns the bundled sample meetings.
func Default() (*Fixture, error) {
	return FromYAML(defaultFixture)
}

// Load reads a fixture file, or the bundled one when path is empty.
func Load(path string) (*Fixture, error) {
	if path == "" {
		return Default()
	}
	return FromFile(path)
}

// FromFile reads a YAML fixture from the given path.
func FromFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates a fixture from raw YAML bytes.
func FromYAML(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid seed yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the invariants the store relies on.
func (f *Fixture) Validate() error {
	if f.CurrentUser.Name == "" {
		return fmt.Errorf("seed.current_user.name is required")
	}
	seen := map[string]bool{}
	for i, m := range f.Meetings {
		if m.ID == "" {
			return fmt.Errorf("seed.meetings[%d].id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate meeting id %s", m.ID)
		}
		seen[m.ID] = true
		if m.Name == "" {
			return fmt.Errorf("meeting %s: name is required", m.ID)
		}
		if domain.WeekdayIndex(m.DayOfWeek) < 0 {
			return fmt.Errorf("meeting %s: day_of_week %q is not a weekday", m.ID, m.DayOfWeek)
		}
		if err := uniqueIDs(m.ID, "rock", len(m.Rocks), func(i int) string { return m.Rocks[i].ID }); err != nil {
			return err
		}
		for _, r := range m.Rocks {
			if !r.Status.Valid() {
				return fmt.Errorf("meeting %s: rock %s has invalid status %q", m.ID, r.ID, r.Status)
			}
		}
		if err := uniqueIDs(m.ID, "headline", len(m.Headlines), func(i int) string { return m.Headlines[i].ID }); err != nil {
			return err
		}
		if err := uniqueIDs(m.ID, "todo", len(m.Todos), func(i int) string { return m.Todos[i].ID }); err != nil {
			return err
		}
		if err := uniqueIDs(m.ID, "issue", len(m.Issues), func(i int) string { return m.Issues[i].ID }); err != nil {
			return err
		}
	}
	return nil
}

func uniqueIDs(meetingID, kind string, n int, id func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			return fmt.Errorf("meeting %s: %s[%d] id is required", meetingID, kind, i)
		}
		if seen[v] {
			return fmt.Errorf("meeting %s: duplicate %s id %s", meetingID, kind, v)
		}
		seen[v] = true
	}
	return nil
}
