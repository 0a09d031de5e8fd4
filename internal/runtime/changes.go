package runtime

import (
	"fmt"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Changes is a partial update from the structured editor. Nil fields are left alone.
type Changes struct {
	Actors         *[]string        `mapstructure:"actors" json:"actors,omitempty"`
	SelectedActors *[]string        `mapstructure:"selectedActors" json:"selectedActors,omitempty"`
	Actions        *[]domain.Action `mapstructure:"actions" json:"actions,omitempty"`
	Title          *string          `mapstructure:"title" json:"title,omitempty"`
}

// DecodeChanges builds Changes from a loosely typed map, as received from
// JSON bodies or tool arguments. Unknown keys are rejected.
func DecodeChanges(input map[string]any) (Changes, error) {
	var c Changes
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &c,
		ErrorUnused: true,
		TagName:     "mapstructure",
	})
	if err != nil {
		return Changes{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return Changes{}, fmt.Errorf("invalid changes: %w", err)
	}
	return c, nil
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.Actors == nil && c.SelectedActors == nil && c.Actions == nil && c.Title == nil
}

func (c Changes) validate() error {
	if c.Actions == nil {
		return nil
	}
	for i, a := range *c.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// apply shallow-merges the set fields into s and keeps the selection within the actors.
func (c Changes) apply(s *domain.EditorState) {
	if c.Actors != nil {
		s.Actors = domain.UniqueStrings(*c.Actors)
	}
	if c.SelectedActors != nil {
		s.SelectedActors = domain.UniqueStrings(*c.SelectedActors)
	}
	if c.Actions != nil {
		s.Actions = domain.CloneActions(*c.Actions)
		if s.Actions == nil {
			s.Actions = []domain.Action{}
		}
	}
	if c.Title != nil {
		s.Title = *c.Title
	}
	s.PruneSelection()
}
