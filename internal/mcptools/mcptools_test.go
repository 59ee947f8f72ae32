package mcptools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magic-amatlan/backend/internal/locale"
)

func newEnv(t *testing.T) Env {
	t.Helper()
	catalog, err := locale.New(zaptest.NewLogger(t))
	require.NoError(t, err)
	return Env{
		Catalog:  catalog,
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC) },
	}
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestDefinitions(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		def    mcp.Tool
		name   string
		params []string
	}{
		{NewPhaseTool(env).Definition(), "moon_phase", []string{"date", "lang"}},
		{NewUpcomingTool(env).Definition(), "lunar_upcoming", []string{"from", "max_results", "horizon_days", "lang"}},
		{NewMonthTool(env).Definition(), "lunar_month", []string{"year", "month", "lang"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.def.Name)
			assert.NotEmpty(t, tt.def.Description)
			for _, p := range tt.params {
				assert.Contains(t, tt.def.InputSchema.Properties, p)
			}
			assert.Empty(t, tt.def.InputSchema.Required)
		})
	}
}

func TestPhaseTool(t *testing.T) {
	tool := NewPhaseTool(newEnv(t))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"date": "2000-01-06",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(result)
	assert.Contains(t, text, "## New Moon")
	assert.Contains(t, text, "**Phase**: NEW")
	assert.Contains(t, text, "**Illumination**: 0%")

	result, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"date": "2000-01-20T12:00:00Z",
		"lang": "es",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), "## Luna llena")
}

func TestPhaseTool_DefaultsToNow(t *testing.T) {
	result, err := NewPhaseTool(newEnv(t)).Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), "2026-10-14T12:00:00Z")
}

func TestPhaseTool_InvalidDate(t *testing.T) {
	result, err := NewPhaseTool(newEnv(t)).Handle(context.Background(), makeReq(map[string]interface{}{
		"date": "next tuesday",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "date must be")
}

func TestUpcomingTool(t *testing.T) {
	tool := NewUpcomingTool(newEnv(t))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"from": "2000-01-06",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(result)
	assert.Contains(t, text, "after 2000-01-06")
	assert.Equal(t, 4, strings.Count(text, "\n- "))
	assert.Contains(t, text, "**2000-01-07**: New Moon (NEW)")
	assert.Contains(t, text, "(LAST_QUARTER)")
}

func TestUpcomingTool_Limits(t *testing.T) {
	tool := NewUpcomingTool(newEnv(t))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"from":        "2000-01-06",
		"max_results": float64(2),
		"lang":        "es",
	}))
	require.NoError(t, err)
	text := resultText(result)
	assert.Equal(t, 2, strings.Count(text, "\n- "))
	assert.Contains(t, text, "Luna nueva")

	for _, args := range []map[string]interface{}{
		{"max_results": float64(0)},
		{"max_results": float64(17)},
		{"horizon_days": float64(0)},
		{"from": "soon"},
	} {
		result, err := tool.Handle(context.Background(), makeReq(args))
		require.NoError(t, err)
		assert.True(t, result.IsError, "%v", args)
	}
}

func TestMonthTool(t *testing.T) {
	tool := NewMonthTool(newEnv(t))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"year":  float64(2025),
		"month": float64(1),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(result)
	assert.Contains(t, text, "## January 2025")
	assert.Contains(t, text, "| 2025-01-01 | Wednesday |")
	assert.Contains(t, text, "| 2025-01-31 | Friday |")
	assert.Equal(t, 31, strings.Count(text, "| 2025-01-"))
}

func TestMonthTool_DefaultsAndErrors(t *testing.T) {
	tool := NewMonthTool(newEnv(t))

	result, err := tool.Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), "## October 2026")

	result, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"month": float64(13)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestNewServer(t *testing.T) {
	assert.NotNil(t, NewServer(newEnv(t)))
}
