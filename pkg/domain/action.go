package domain

import "fmt"

// ActionType discriminates the Action variant.
type ActionType string

const (
	ActionMessage   ActionType = "message"
	ActionLoop      ActionType = "loop"
	ActionCondition ActionType = "condition"
	ActionParallel  ActionType = "parallel"
	ActionGroup     ActionType = "group"
	ActionDivider   ActionType = "divider"
	ActionDelay     ActionType = "delay"
	ActionNote      ActionType = "note"
)

// Action is a node of the diagram tree. Only the fields relevant to Type are set.
// An empty Type is read as ActionMessage.
type Action struct {
	Type ActionType `json:"type,omitempty" mapstructure:"type"`

	// Message
	From      string `json:"from,omitempty" mapstructure:"from"`
	To        string `json:"to,omitempty" mapstructure:"to"`
	Arrow     string `json:"arrow,omitempty" mapstructure:"arrow"`
	Async     bool   `json:"async,omitempty" mapstructure:"async"`
	Uncertain bool   `json:"uncertain,omitempty" mapstructure:"uncertain"`

	// Message, Divider, Delay, Note
	Text string `json:"text,omitempty" mapstructure:"text"`

	// Loop
	Condition string `json:"condition,omitempty" mapstructure:"condition"`

	// Loop, Group
	Actions []Action `json:"actions,omitempty" mapstructure:"actions"`

	// Condition
	ConditionType string   `json:"conditionType,omitempty" mapstructure:"conditionType"`
	ConditionName string   `json:"conditionName,omitempty" mapstructure:"conditionName"`
	TrueBranch    []Action `json:"trueBranch,omitempty" mapstructure:"trueBranch"`
	FalseBranch   []Action `json:"falseBranch,omitempty" mapstructure:"falseBranch"`
	ElseCondition string   `json:"elseCondition,omitempty" mapstructure:"elseCondition"`

	// Parallel
	Branches [][]Action `json:"branches,omitempty" mapstructure:"branches"`

	// Group
	Label string `json:"label,omitempty" mapstructure:"label"`

	// Note
	Position string `json:"position,omitempty" mapstructure:"position"`
	Target   string `json:"target,omitempty" mapstructure:"target"`
}

func NewMessage(from, to, text string) Action {
	return Action{Type: ActionMessage, From: from, To: to, Text: text}
}

func NewLoop(condition string, actions ...Action) Action {
	return Action{Type: ActionLoop, Condition: condition, Actions: actions}
}

// NewCondition builds an alt/opt style block. conditionType is the keyword rendered
// in front of the name ("alt", "opt", ...).
func NewCondition(conditionType, name string, trueBranch, falseBranch []Action) Action {
	return Action{
		Type:          ActionCondition,
		ConditionType: conditionType,
		ConditionName: name,
		TrueBranch:    trueBranch,
		FalseBranch:   falseBranch,
	}
}

func NewParallel(branches ...[]Action) Action {
	return Action{Type: ActionParallel, Branches: branches}
}

func NewGroup(label string, actions ...Action) Action {
	return Action{Type: ActionGroup, Label: label, Actions: actions}
}

func NewDivider(text string) Action {
	return Action{Type: ActionDivider, Text: text}
}

func NewDelay(text string) Action {
	return Action{Type: ActionDelay, Text: text}
}

func NewNote(position, target, text string) Action {
	return Action{Type: ActionNote, Position: position, Target: target, Text: text}
}

// Kind returns the effective type, mapping the empty type to ActionMessage.
func (a Action) Kind() ActionType {
	if a.Type == "" {
		return ActionMessage
	}
	return a.Type
}

// IsComplex reports whether the action is a structured block.
func (a Action) IsComplex() bool {
	switch a.Kind() {
	case ActionLoop, ActionCondition, ActionParallel, ActionGroup:
		return true
	}
	return false
}

// Clone deep-copies the action and all nested actions.
func (a Action) Clone() Action {
	out := a
	out.Actions = CloneActions(a.Actions)
	out.TrueBranch = CloneActions(a.TrueBranch)
	out.FalseBranch = CloneActions(a.FalseBranch)
	if a.Branches != nil {
		out.Branches = make([][]Action, len(a.Branches))
		for i, b := range a.Branches {
			out.Branches[i] = CloneActions(b)
		}
	}
	return out
}

// CloneActions deep-copies a sequence of actions. A nil input stays nil.
func CloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = a.Clone()
	}
	return out
}

// Validate checks the action tree for unknown kinds and incomplete messages.
func (a Action) Validate() error {
	switch a.Kind() {
	case ActionMessage:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("message action requires from and to")
		}
	case ActionLoop, ActionGroup:
		return validateAll(a.Actions)
	case ActionCondition:
		if err := validateAll(a.TrueBranch); err != nil {
			return err
		}
		return validateAll(a.FalseBranch)
	case ActionParallel:
		for _, b := range a.Branches {
			if err := validateAll(b); err != nil {
				return err
			}
		}
	case ActionDivider, ActionDelay:
	case ActionNote:
		if a.Position == "" {
			return fmt.Errorf("note action requires a position")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

func validateAll(actions []Action) error {
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// CountMessages returns the number of message actions in the tree.
func CountMessages(actions []Action) int {
	n := 0
	for _, a := range actions {
		switch a.Kind() {
		case ActionMessage:
			n++
		case ActionLoop, ActionGroup:
			n += CountMessages(a.Actions)
		case ActionCondition:
			n += CountMessages(a.TrueBranch) + CountMessages(a.FalseBranch)
		case ActionParallel:
			for _, b := range a.Branches {
				n += CountMessages(b)
			}
		}
	}
	return n
}
