package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/umlsync/internal/presentation/plantuml"
	"github.com/aretw0/umlsync/pkg/domain"
)

// Highlight marks actors to emphasize in the rendered diagram.
type Highlight struct {
	SelectedActors []string
}

// GenerateMermaid produces a Mermaid sequenceDiagram from the canonical model.
// It applies semantic declarations:
// - actor kind: actor
// - participant and database kinds: participant
// Names that are not valid Mermaid IDs are aliased.
// Selected actors are wrapped in a highlighted box if a Highlight is provided.
func GenerateMermaid(title string, actors []string, actions []domain.Action, highlight *Highlight) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	if title != "" {
		sb.WriteString(fmt.Sprintf("    title %s\n", title))
	}

	selected := make(map[string]bool)
	if highlight != nil {
		for _, name := range highlight.SelectedActors {
			selected[name] = true
		}
	}

	var boxed []string
	for _, name := range actors {
		if selected[name] {
			boxed = append(boxed, name)
		}
	}
	if len(boxed) > 0 {
		sb.WriteString("    box rgb(255, 235, 59) Selected\n")
		for _, name := range boxed {
			sb.WriteString("    " + declare(name) + "\n")
		}
		sb.WriteString("    end\n")
	}
	for _, name := range actors {
		if !selected[name] {
			sb.WriteString("    " + declare(name) + "\n")
		}
	}

	writeActions(&sb, actions, 1)
	return sb.String()
}

func declare(name string) string {
	keyword := "participant"
	if plantuml.ActorKind(name) == "actor" {
		keyword = "actor"
	}
	id := sanitizeMermaidID(name)
	if id == name {
		return keyword + " " + id
	}
	return fmt.Sprintf("%s %s as %s", keyword, id, name)
}

func writeActions(sb *strings.Builder, actions []domain.Action, depth int) {
	pad := strings.Repeat("    ", depth)
	for _, a := range actions {
		switch a.Kind() {
		case domain.ActionLoop:
			sb.WriteString(pad + "loop " + a.Condition + "\n")
			writeActions(sb, a.Actions, depth+1)
			sb.WriteString(pad + "end\n")
		case domain.ActionCondition:
			keyword := "alt"
			if a.ConditionType == "opt" && len(a.FalseBranch) == 0 {
				keyword = "opt"
			}
			sb.WriteString(pad + keyword + " " + a.ConditionName + "\n")
			writeActions(sb, a.TrueBranch, depth+1)
			if len(a.FalseBranch) > 0 {
				sb.WriteString(pad + "else " + a.ElseCondition + "\n")
				writeActions(sb, a.FalseBranch, depth+1)
			}
			sb.WriteString(pad + "end\n")
		case domain.ActionParallel:
			for i, branch := range a.Branches {
				if i == 0 {
					sb.WriteString(pad + "par\n")
				} else {
					sb.WriteString(pad + "and\n")
				}
				writeActions(sb, branch, depth+1)
			}
			if len(a.Branches) > 0 {
				sb.WriteString(pad + "end\n")
			}
		case domain.ActionGroup:
			sb.WriteString(pad + "rect rgba(0, 0, 0, 0.05)\n")
			sb.WriteString(pad + "    %% " + a.Label + "\n")
			writeActions(sb, a.Actions, depth+1)
			sb.WriteString(pad + "end\n")
		case domain.ActionDivider:
			sb.WriteString(pad + "%% == " + a.Text + " ==\n")
		case domain.ActionDelay:
			sb.WriteString(pad + "%% ..." + a.Text + "...\n")
		case domain.ActionNote:
			if a.Target == "" {
				continue
			}
			pos := "over"
			if a.Position == "left" || a.Position == "right" {
				pos = a.Position + " of"
			}
			sb.WriteString(fmt.Sprintf("%sNote %s %s: %s\n", pad, pos, sanitizeMermaidID(a.Target), a.Text))
		default:
			arrow := "->>"
			if a.Async || a.Arrow == "-->" {
				arrow = "-->>"
			}
			text := a.Text
			if a.Uncertain {
				text += "?"
			}
			sb.WriteString(fmt.Sprintf("%s%s%s%s: %s\n", pad, sanitizeMermaidID(a.From), arrow, sanitizeMermaidID(a.To), text))
		}
	}
}

func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		case r > 127:
			sb.WriteString(fmt.Sprintf("u%x", r))
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
