package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	base := &Snapshot{
		Actors:         []string{"User", "System"},
		Actions:        []Action{NewMessage("User", "System", "login")},
		Code:           "@startuml\n@enduml",
		SelectedActors: []string{"User"},
	}

	tests := []struct {
		name  string
		old   *Snapshot
		new   *Snapshot
		check func(t *testing.T, d *StateDiff)
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  base,
			check: func(t *testing.T, d *StateDiff) {
				require.NotNil(t, d)
				assert.Equal(t, []string{"User", "System"}, d.ActorsAdded)
				require.NotNil(t, d.Code)
				assert.Equal(t, base.Code, *d.Code)
				assert.Nil(t, d.Title)
				assert.Len(t, d.Actions, 1)
			},
		},
		{
			name: "No Changes",
			old:  base,
			new:  &Snapshot{Actors: []string{"User", "System"}, Actions: []Action{NewMessage("User", "System", "login")}, Code: base.Code, SelectedActors: []string{"User"}},
			check: func(t *testing.T, d *StateDiff) {
				assert.Nil(t, d)
			},
		},
		{
			name: "Actor Added and Removed",
			old:  base,
			new:  &Snapshot{Actors: []string{"User", "DB"}, Actions: base.Actions, Code: base.Code, SelectedActors: []string{"User"}},
			check: func(t *testing.T, d *StateDiff) {
				require.NotNil(t, d)
				assert.Equal(t, []string{"DB"}, d.ActorsAdded)
				assert.Equal(t, []string{"System"}, d.ActorsRemoved)
				assert.Nil(t, d.Code)
				assert.Nil(t, d.Actions)
			},
		},
		{
			name: "Title and Selection Cleared",
			old:  &Snapshot{Actors: base.Actors, Title: "Login", SelectedActors: []string{"User"}},
			new:  &Snapshot{Actors: base.Actors, SelectedActors: nil},
			check: func(t *testing.T, d *StateDiff) {
				require.NotNil(t, d)
				require.NotNil(t, d.Title)
				assert.Equal(t, "", *d.Title)
				assert.Equal(t, []string{}, d.Selection)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Diff(tt.old, tt.new))
		})
	}
}

func TestDiff_NilNew(t *testing.T) {
	assert.Nil(t, Diff(&Snapshot{}, nil))
}
