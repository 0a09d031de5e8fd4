package umlsync_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/pkg/adapters/memory"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScript(t *testing.T, ed *umlsync.Editor, script string) string {
	t.Helper()
	var out bytes.Buffer
	r := umlsync.NewRunner()
	r.Input = strings.NewReader(script)
	r.Output = &out
	r.Headless = true
	require.NoError(t, r.Run(context.Background(), ed))
	return out.String()
}

func TestRunner_ApplyAndShow(t *testing.T) {
	ed := newEditor(t)
	out := runScript(t, ed, `@startuml
actor Alice
actor Bob
Alice -> Bob: hello
@enduml
:apply
:title Greeting
:undo
:undo
:redo
:quit
:show
`)
	assert.Contains(t, out, "actors: Alice, Bob")
	assert.Contains(t, out, "title Greeting")
	assert.Contains(t, out, "undone")
	assert.Contains(t, out, "redone")
	// :show comes after :quit and is never run.
	assert.Equal(t, 1, strings.Count(out, "@startuml"))
	assert.Equal(t, "Alice", ed.State().Actors[0])
}

func TestRunner_WarningsAndUnknown(t *testing.T) {
	ed := newEditor(t)
	out := runScript(t, ed, "actor A\nA -> Ghost: boo\n:apply\n:frobnicate\n:redo\n")
	assert.Contains(t, out, `warning: participant "Ghost" is used but not declared`)
	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "nothing to redo")
}

func TestRunner_SelectMermaidStats(t *testing.T) {
	ed := newEditor(t)
	out := runScript(t, ed, "actor A\nactor B\nA -> B: x\n:apply\n:select B\n:mermaid\n:stats\n")
	assert.Contains(t, out, "sequenceDiagram")
	assert.Contains(t, out, "Selected")
	assert.Contains(t, out, "actors: 2, actions: 1")
	assert.Equal(t, []string{"B"}, ed.State().SelectedActors)
}

func TestRunner_Renderer(t *testing.T) {
	ed := newEditor(t)
	var out bytes.Buffer
	r := &umlsync.Runner{
		Input:    strings.NewReader(":show\n"),
		Output:   &out,
		Headless: true,
		Renderer: func(s string) (string, error) { return strings.ToUpper(s), nil },
	}
	require.NoError(t, r.Run(context.Background(), ed))
	assert.Contains(t, out.String(), "@STARTUML")
}

func TestRunner_RequiresIO(t *testing.T) {
	ed := newEditor(t)
	assert.Error(t, umlsync.NewRunner().Run(context.Background(), ed))
}

func TestRunner_OpenFromLibrary(t *testing.T) {
	lib := memory.NewLibrary(map[string]string{
		"login": "actor User\nparticipant AuthService\nUser -> AuthService: login",
	})
	ed := newEditor(t, umlsync.WithLibrary(lib))
	out := runScript(t, ed, ":open login\n:open missing\n")
	assert.Contains(t, out, "actors: User, AuthService")
	assert.Contains(t, out, "error: diagram not found")
	assert.Equal(t, 1, domain.CountMessages(ed.State().Actions))
}

func TestRunner_OpenWithoutLibrary(t *testing.T) {
	ed := newEditor(t)
	out := runScript(t, ed, ":open login\n")
	assert.Contains(t, out, "error: no diagram library configured")
}

func TestRunner_RejectsControlBytes(t *testing.T) {
	ed := newEditor(t)
	out := runScript(t, ed, "actor A\x1b\nactor B\nA -> B: \xff\n:apply\n")
	assert.Contains(t, out, "error: line contains invalid UTF-8")
	assert.Contains(t, out, "actors: A, B")
}
