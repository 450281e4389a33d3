package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	data := map[string]any{"agent_name": "search", "query": "go <generics>"}

	out, err := Render("plain text", data)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = Render("You are {{upper .agent_name}}. Q: {{.query}}", data)
	require.NoError(t, err)
	assert.Equal(t, "You are SEARCH. Q: go <generics>", out)

	out, err = Render(`{{default "none" .instructions}}`, data)
	require.NoError(t, err)
	assert.Equal(t, "none", out)

	_, err = Render("{{.broken", data)
	assert.Error(t, err)
}
