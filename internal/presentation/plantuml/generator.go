// Package plantuml renders the canonical model back into description text.
package plantuml

import (
	"strings"
	"unicode"

	"github.com/aretw0/umlsync/pkg/domain"
)

const (
	Header = "@startuml"
	Footer = "@enduml"

	indentUnit = "    "
)

// Generate produces description text from the model. The output is a pure
// function of its arguments:
//
//	@startuml
//	[title T]
//	<blank>
//	<one declaration per actor>
//	[<blank> if any actor]
//	<actions, 4 spaces per nesting level>
//	<blank>
//	@enduml
func Generate(title string, actors []string, actions []domain.Action) string {
	lines := []string{Header}
	if title != "" {
		lines = append(lines, "title "+title)
	}
	lines = append(lines, "")

	for _, name := range actors {
		lines = append(lines, Declaration(name))
	}
	if len(actors) > 0 {
		lines = append(lines, "")
	}

	lines = appendActions(lines, actions, 0)
	lines = append(lines, "", Footer)
	return strings.Join(lines, "\n")
}

// ActorKind infers the declaration keyword from the actor's name.
func ActorKind(name string) string {
	lower := strings.ToLower(name)
	switch {
	case containsAny(name, "システム", "サイト") || containsAny(lower, "system", "site"):
		return "participant"
	case containsAny(name, "DB", "データベース") || strings.Contains(lower, "database"):
		return "database"
	case strings.Contains(name, "サービス") || strings.Contains(lower, "service"):
		return "participant"
	}
	return "actor"
}

// Declaration renders one actor declaration line. Non-ASCII names are quoted.
func Declaration(name string) string {
	return ActorKind(name) + " " + quoteName(name)
}

// MessageLine renders a message without indentation. Non-ASCII endpoints are quoted.
func MessageLine(a domain.Action) string {
	arrow := a.Arrow
	if arrow == "" {
		arrow = "->"
		if a.Async {
			arrow = "-->"
		}
	}
	text := a.Text
	if a.Uncertain {
		text += "？"
	}
	return quoteName(a.From) + " " + arrow + " " + quoteName(a.To) + ": " + text
}

func appendActions(lines []string, actions []domain.Action, depth int) []string {
	for _, a := range actions {
		lines = appendAction(lines, a, depth)
	}
	return lines
}

func appendAction(lines []string, a domain.Action, depth int) []string {
	pad := strings.Repeat(indentUnit, depth)

	switch a.Kind() {
	case domain.ActionLoop:
		lines = append(lines, pad+joinWord("loop", a.Condition))
		lines = appendActions(lines, a.Actions, depth+1)
		lines = append(lines, pad+"end")

	case domain.ActionCondition:
		kind := a.ConditionType
		if kind == "" {
			kind = "alt"
		}
		lines = append(lines, pad+joinWord(kind, a.ConditionName))
		lines = appendActions(lines, a.TrueBranch, depth+1)
		if len(a.FalseBranch) > 0 {
			lines = append(lines, pad+joinWord("else", a.ElseCondition))
			lines = appendActions(lines, a.FalseBranch, depth+1)
		}
		lines = append(lines, pad+"end")

	case domain.ActionParallel:
		lines = append(lines, pad+"par")
		for i, branch := range a.Branches {
			if i > 0 {
				lines = append(lines, pad+"else")
			}
			lines = appendActions(lines, branch, depth+1)
		}
		lines = append(lines, pad+"end")

	case domain.ActionGroup:
		lines = append(lines, pad+joinWord("group", a.Label))
		lines = appendActions(lines, a.Actions, depth+1)
		lines = append(lines, pad+"end")

	case domain.ActionDivider:
		lines = append(lines, pad+"== "+a.Text+" ==")

	case domain.ActionDelay:
		lines = append(lines, pad+"..."+a.Text+"...")

	case domain.ActionNote:
		target := ""
		if a.Target != "" {
			target = " of " + quoteName(a.Target)
		}
		lines = append(lines, pad+"note "+a.Position+target+": "+a.Text)

	default:
		lines = append(lines, pad+MessageLine(a))
	}
	return lines
}

func joinWord(keyword, rest string) string {
	if rest == "" {
		return keyword
	}
	return keyword + " " + rest
}

func quoteName(name string) string {
	for _, r := range name {
		if r > unicode.MaxASCII {
			return `"` + name + `"`
		}
	}
	return name
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
