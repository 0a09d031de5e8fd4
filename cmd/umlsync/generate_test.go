package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeModel_JSON(t *testing.T) {
	m, err := decodeModel("model.json", `{
  "title": "Login",
  "actors": ["User", "AuthService", "User"],
  "actions": [{"type": "message", "from": "User", "to": "AuthService", "text": "login"}]
}`)
	require.NoError(t, err)
	assert.Equal(t, "Login", m.Title)
	assert.Equal(t, []string{"User", "AuthService"}, m.Actors)
	require.Len(t, m.Actions, 1)
	assert.Equal(t, "login", m.Actions[0].Text)
}

func TestDecodeModel_YAML(t *testing.T) {
	m, err := decodeModel("model.yaml", `
title: Login
actors: [User, AuthService]
actions:
  - type: loop
    condition: retry
    actions:
      - from: User
        to: AuthService
        text: login
`)
	require.NoError(t, err)
	require.Len(t, m.Actions, 1)
	require.Len(t, m.Actions[0].Actions, 1)
	assert.Equal(t, "AuthService", m.Actions[0].Actions[0].To)
}

func TestDecodeModel_Invalid(t *testing.T) {
	_, err := decodeModel("model.json", `{"actions": [{"type": "message"}]}`)
	assert.Error(t, err)

	_, err = decodeModel("model.json", `{`)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	m := model{Title: "T", Actors: []string{"A", "B"}}

	out, err := render(m, "plantuml")
	require.NoError(t, err)
	assert.Contains(t, out, "@startuml")
	assert.Contains(t, out, "title T")

	out, err = render(m, "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "sequenceDiagram")

	_, err = render(m, "svg")
	assert.Error(t, err)
}
