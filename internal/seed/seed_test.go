package seed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelten/internal/domain"
	"levelten/internal/seed"
)

func TestDefaultFixture(t *testing.T) {
	f, err := seed.Default()
	require.NoError(t, err)

	assert.Equal(t, domain.User{ID: "1001", Name: "You"}, f.CurrentUser)
	require.Len(t, f.Meetings, 3)
	assert.Equal(t, []string{"Monday", "Wednesday", "Friday"}, []string{
		f.Meetings[0].DayOfWeek, f.Meetings[1].DayOfWeek, f.Meetings[2].DayOfWeek,
	})

	exec := f.Meetings[2]
	require.Len(t, exec.Issues, 5)
	assert.True(t, exec.Issues[0].IsResolved())
	require.NotNil(t, exec.Issues[0].ResolvedAt)
	assert.Equal(t, "2023-10-15", *exec.Issues[0].ResolvedAt)
	assert.False(t, f.Meetings[0].Issues[0].IsResolved())
	assert.Equal(t, domain.RockOffTrack, f.Meetings[0].Rocks[1].Status)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yml")
	data := []byte(`current_user: {id: u1, name: Ann}
meetings:
  - id: a
    name: Ops
    day_of_week: Tuesday
    members: [Ann, Bob]
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := seed.Load(path)
	require.NoError(t, err)
	require.Len(t, f.Meetings, 1)
	assert.Equal(t, []string{"Ann", "Bob"}, f.Meetings[0].Members)

	f, err = seed.Load("")
	require.NoError(t, err)
	assert.Len(t, f.Meetings, 3)
}

func TestFixtureValidation(t *testing.T) {
	cases := map[string]string{
		"missing user": `meetings: []`,
		"duplicate meeting": `current_user: {name: A}
meetings:
  - {id: "1", name: x, day_of_week: Monday}
  - {id: "1", name: y, day_of_week: Monday}`,
		"bad weekday": `current_user: {name: A}
meetings:
  - {id: "1", name: x, day_of_week: Funday}`,
		"duplicate todo": `current_user: {name: A}
meetings:
  - id: "1"
    name: x
    day_of_week: Monday
    todos: [{id: t, description: a}, {id: t, description: b}]`,
		"bad rock status": `current_user: {name: A}
meetings:
  - id: "1"
    name: x
    day_of_week: Monday
    rocks: [{id: r, description: a, status: stuck}]`,
		"not yaml": `::: [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := seed.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}
