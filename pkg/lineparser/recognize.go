package lineparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/umlsync/pkg/domain"
)

// ActorKeywords are the declaration keywords, in match order.
var ActorKeywords = []string{"actor", "participant", "entity", "database", "collections"}

var (
	notePattern  = regexp.MustCompile(`(?i)note\s+(left|right|over)\s*:?\s*(.+)`)
	groupPattern = regexp.MustCompile(`(?i)(group|alt|loop)\s+(.+)`)
)

// IsComment reports whether a trimmed line is a comment.
func IsComment(line string) bool {
	return strings.HasPrefix(line, "'")
}

// RecognizeActor matches "keyword name". Double quotes are removed from the name.
func RecognizeActor(line string) (typ, name string, ok bool) {
	for _, kw := range ActorKeywords {
		if strings.HasPrefix(line, kw+" ") {
			name = strings.TrimSpace(strings.ReplaceAll(line[len(kw)+1:], `"`, ""))
			return kw, name, true
		}
	}
	return "", "", false
}

// RecognizeMessage matches "from ARROW to: text".
// "-->" takes precedence over "->"; the split must yield exactly two parts and
// the right-hand side is split at its first colon.
func RecognizeMessage(line string) (from, to, text, arrow string, ok bool) {
	if !strings.Contains(line, "->") || !strings.Contains(line, ":") {
		return "", "", "", "", false
	}
	arrow = "->"
	if strings.Contains(line, "-->") {
		arrow = "-->"
	}
	parts := strings.Split(line, arrow)
	if len(parts) != 2 {
		return "", "", "", "", false
	}
	left, right := parts[0], parts[1]
	colon := strings.Index(right, ":")
	if colon < 0 {
		return "", "", "", "", false
	}
	from = cleanName(left)
	to = cleanName(right[:colon])
	if from == "" || to == "" {
		return "", "", "", "", false
	}
	return from, to, strings.TrimSpace(right[colon+1:]), arrow, true
}

// RecognizeNote matches "note left|right|over [:] text".
func RecognizeNote(line string) (position, text string, ok bool) {
	if !strings.HasPrefix(line, "note ") {
		return "", "", false
	}
	m := notePattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

// RecognizeGroup matches the opening line of a group, alt or loop block.
func RecognizeGroup(line string) (typ, label string, ok bool) {
	if !strings.HasPrefix(line, "group ") && !strings.HasPrefix(line, "alt ") && !strings.HasPrefix(line, "loop ") {
		return "", "", false
	}
	m := groupPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// Features selects which recognizers a Scanner applies.
type Features uint8

const (
	Actors Features = 1 << iota
	Messages
	Notes
	Groups

	All = Actors | Messages | Notes | Groups
)

func (f Features) has(x Features) bool { return f&x != 0 }

// accumulator assigns per-category ids while collecting a result.
type accumulator struct {
	res domain.ParseResult
}

func newAccumulator(lineCount int) *accumulator {
	res := domain.NewParseResult()
	res.LineCount = lineCount
	return &accumulator{res: res}
}

// line applies every enabled recognizer to one raw line. The recognizers are
// independent, so a single line can land in several categories.
func (a *accumulator) line(raw string, index int, f Features) {
	line := strings.TrimSpace(raw)
	if line == "" || IsComment(line) {
		return
	}

	if f.has(Actors) {
		if typ, name, ok := RecognizeActor(line); ok {
			a.res.Actors = append(a.res.Actors, domain.ActorDecl{
				Type: typ, Name: name, Line: index, ID: id("actor", len(a.res.Actors)),
			})
		}
	}

	if f.has(Messages) {
		if from, to, text, arrow, ok := RecognizeMessage(line); ok {
			a.res.Messages = append(a.res.Messages, domain.MessageLine{
				From: from, To: to, Text: text, Arrow: arrow, Line: index, ID: id("msg", len(a.res.Messages)),
			})
		}
	}

	if f.has(Notes) {
		if pos, text, ok := RecognizeNote(line); ok {
			a.res.Notes = append(a.res.Notes, domain.NoteLine{
				Position: pos, Text: text, Line: index, ID: id("note", len(a.res.Notes)),
			})
		}
	}

	if f.has(Groups) {
		if typ, label, ok := RecognizeGroup(line); ok {
			a.res.Groups = append(a.res.Groups, domain.GroupLine{
				Type: typ, Label: label, Line: index, ID: id("group", len(a.res.Groups)),
			})
		}
	}
}

func id(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}
