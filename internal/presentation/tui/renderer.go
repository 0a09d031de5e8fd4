package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// An empty style detects a light or dark background.
func NewRenderer(style string) (func(string) (string, error), error) {
	opt := glamour.WithAutoStyle()
	if style != "" {
		opt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render, nil
}

// CodeBlock wraps description text in a fenced block so it renders highlighted.
func CodeBlock(code string) string {
	return "```plantuml\n" + strings.TrimRight(code, "\n") + "\n```\n"
}

// Summary describes an editor state as markdown.
func Summary(st *domain.EditorState) string {
	var b strings.Builder
	title := st.Title
	if title == "" {
		title = "Untitled diagram"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(st.Actors) > 0 {
		b.WriteString("## Actors\n\n")
		for _, a := range st.Actors {
			mark := ""
			if st.IsSelected(a) {
				mark = " *(selected)*"
			}
			fmt.Fprintf(&b, "- %s%s\n", a, mark)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**%d** actors, **%d** actions, **%d** messages, **%d** notes\n\n",
		st.Stats.TotalActors, st.Stats.TotalActions, domain.CountMessages(st.Actions), st.Stats.TotalNotes)

	writeIssues(&b, "Errors", st.ParseErrors)
	writeIssues(&b, "Warnings", st.ParseWarnings)
	return b.String()
}

func writeIssues(b *strings.Builder, heading string, issues []domain.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, is := range issues {
		fmt.Fprintf(b, "- %s\n", is.Message)
	}
	b.WriteString("\n")
}
