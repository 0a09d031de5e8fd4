// Package structured builds the nested action tree of a description text:
// titles, declarations, messages, notes, dividers, delays and the loop, alt,
// par and group blocks. It is the grammar-aware parser used by the engine.
package structured

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/lineparser"
	"github.com/aretw0/umlsync/pkg/ports"
)

// UncertainMark is appended to the text of uncertain messages.
const UncertainMark = "？"

// ConditionKeywords open a condition block.
var ConditionKeywords = []string{"alt", "opt", "break", "critical"}

var (
	dividerPattern = regexp.MustCompile(`^==\s*(.*?)\s*==$`)
	delayPattern   = regexp.MustCompile(`^\.\.\.(.*?)\.\.\.$`)
	notePattern    = regexp.MustCompile(`(?i)^note\s+(left|right|over)(?:\s+of)?(?:\s+([^:]+?))?\s*:\s*(.*)$`)
)

// Parser implements ports.Parser.
type Parser struct {
	source ports.LineParser
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLineSource obtains the line-level result from src (usually the dispatcher)
// instead of calling the line parser directly.
func WithLineSource(src ports.LineParser) Option {
	return func(p *Parser) {
		p.source = src
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SafeParse builds the document for text. It fails only when text is not UTF-8
// or the line source fails.
func (p *Parser) SafeParse(ctx context.Context, text string) (*domain.Document, error) {
	if !utf8.ValidString(text) {
		return nil, domain.ErrInvalidEncoding
	}

	var lines domain.ParseResult
	if p.source != nil {
		var err error
		lines, err = p.source.Parse(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("line parse failed: %w", err)
		}
	} else {
		lines = lineparser.Parse(text)
	}

	b := build(text)
	doc := &domain.Document{
		Title:      b.title,
		Actors:     b.actors,
		Actions:    b.root,
		Lines:      lines,
		IsFallback: lines.Degraded,
	}
	if doc.IsFallback {
		p.logger.Warn("line parse degraded", "notice", lines.Notice)
	}
	return doc, nil
}

// Validate reports structural errors (unbalanced blocks) and warnings
// (missing markers, duplicate or undeclared participants).
func (p *Parser) Validate(text string) domain.Validation {
	v := domain.Validation{Errors: []string{}, Warnings: []string{}}
	if !utf8.ValidString(text) {
		v.Errors = append(v.Errors, domain.ErrInvalidEncoding.Error())
		return v
	}
	b := build(text)
	v.Errors = append(v.Errors, b.errors...)
	v.Warnings = append(v.Warnings, b.warnings...)
	v.Valid = len(v.Errors) == 0
	return v
}

type frame struct {
	action domain.Action
	branch int
	line   int
	elses  int
}

type builder struct {
	title    string
	actors   []string
	root     []domain.Action
	stack    []*frame
	errors   []string
	warnings []string

	sawStart, sawEnd bool
	participants     []string
}

func build(text string) *builder {
	b := &builder{actors: []string{}, root: []domain.Action{}}
	for i, raw := range strings.Split(text, "\n") {
		b.line(strings.TrimSpace(raw), i+1)
	}
	for len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		b.errors = append(b.errors, fmt.Sprintf("line %d: unclosed %s block", top.line, top.action.Type))
		b.pop()
	}

	if !b.sawStart {
		b.warnings = append(b.warnings, "missing @startuml")
	}
	if !b.sawEnd {
		b.warnings = append(b.warnings, "missing @enduml")
	}
	for _, name := range b.participants {
		if !slices.Contains(b.actors, name) {
			b.warnings = append(b.warnings, fmt.Sprintf("participant %q is used but not declared", name))
		}
	}
	return b
}

func (b *builder) line(line string, n int) {
	if line == "" || lineparser.IsComment(line) {
		return
	}
	keyword, rest := splitKeyword(line)

	switch {
	case strings.HasPrefix(line, "@startuml"):
		b.sawStart = true
		return
	case strings.HasPrefix(line, "@enduml"):
		b.sawEnd = true
		return
	case keyword == "title":
		b.title = rest
		return
	case keyword == "note":
		if m := notePattern.FindStringSubmatch(line); m != nil {
			target := strings.TrimSpace(strings.ReplaceAll(m[2], `"`, ""))
			b.add(domain.NewNote(strings.ToLower(m[1]), target, strings.TrimSpace(m[3])))
		}
		return
	}

	if _, name, ok := lineparser.RecognizeActor(line); ok {
		if name == "" {
			return
		}
		if slices.Contains(b.actors, name) {
			b.warnings = append(b.warnings, fmt.Sprintf("line %d: actor %q declared twice", n, name))
			return
		}
		b.actors = append(b.actors, name)
		return
	}

	if from, to, text, arrow, ok := lineparser.RecognizeMessage(line); ok {
		msg := domain.NewMessage(from, to, text)
		msg.Arrow = arrow
		msg.Async = arrow == "-->"
		if strings.HasSuffix(text, UncertainMark) {
			msg.Uncertain = true
			msg.Text = strings.TrimSpace(strings.TrimSuffix(text, UncertainMark))
		}
		b.note(from)
		b.note(to)
		b.add(msg)
		return
	}

	switch {
	case keyword == "end":
		if len(b.stack) == 0 {
			b.errors = append(b.errors, fmt.Sprintf("line %d: end without an open block", n))
			return
		}
		b.pop()
	case keyword == "else":
		b.elseBranch(rest, n)
	case keyword == "loop":
		b.push(domain.NewLoop(rest), n)
	case slices.Contains(ConditionKeywords, keyword):
		b.push(domain.NewCondition(keyword, rest, nil, nil), n)
	case keyword == "par":
		b.push(domain.NewParallel([]domain.Action{}), n)
	case keyword == "group":
		b.push(domain.NewGroup(rest), n)
	case line == "...":
		b.add(domain.NewDelay(""))
	default:
		if m := dividerPattern.FindStringSubmatch(line); m != nil {
			b.add(domain.NewDivider(m[1]))
		} else if m := delayPattern.FindStringSubmatch(line); m != nil {
			b.add(domain.NewDelay(strings.TrimSpace(m[1])))
		}
	}
}

func (b *builder) note(participant string) {
	if !slices.Contains(b.participants, participant) {
		b.participants = append(b.participants, participant)
	}
}

func (b *builder) push(a domain.Action, n int) {
	b.stack = append(b.stack, &frame{action: a, line: n})
}

func (b *builder) pop() {
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.add(top.action)
}

func (b *builder) elseBranch(label string, n int) {
	if len(b.stack) == 0 {
		b.errors = append(b.errors, fmt.Sprintf("line %d: else without an open block", n))
		return
	}
	top := b.stack[len(b.stack)-1]
	switch top.action.Type {
	case domain.ActionCondition:
		top.elses++
		if top.elses > 1 {
			b.warnings = append(b.warnings, fmt.Sprintf("line %d: extra else merged into the previous branch", n))
			return
		}
		top.branch = 1
		top.action.ElseCondition = label
	case domain.ActionParallel:
		top.action.Branches = append(top.action.Branches, []domain.Action{})
		top.branch++
	default:
		b.errors = append(b.errors, fmt.Sprintf("line %d: else inside a %s block", n, top.action.Type))
	}
}

// add appends a finished action to the innermost open block or the root.
func (b *builder) add(a domain.Action) {
	if len(b.stack) == 0 {
		b.root = append(b.root, a)
		return
	}
	top := b.stack[len(b.stack)-1]
	switch top.action.Type {
	case domain.ActionCondition:
		if top.branch == 0 {
			top.action.TrueBranch = append(top.action.TrueBranch, a)
		} else {
			top.action.FalseBranch = append(top.action.FalseBranch, a)
		}
	case domain.ActionParallel:
		top.action.Branches[top.branch] = append(top.action.Branches[top.branch], a)
	default:
		top.action.Actions = append(top.action.Actions, a)
	}
}

// splitKeyword returns the lower-cased first word and the trimmed remainder.
func splitKeyword(line string) (string, string) {
	word, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(word), strings.TrimSpace(rest)
}
