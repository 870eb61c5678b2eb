package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemfalcon/chembot/core"
)

func newTestContext(t *testing.T) *core.ToolContext {
	t.Helper()
	sess := core.NewSession("sess-1", "auth-token")
	return core.NewToolContext(context.Background(), sess, "fc-1", "hello", nil)
}

func TestFunctionToolCall(t *testing.T) {
	sumTool := NewFunctionTool(
		"calculate_total",
		"Calculate quantity times unit price",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"quantity": map[string]any{"type": "number"},
				"price":    map[string]any{"type": "number"},
			},
			"required": []string{"quantity", "price"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["quantity"].(float64) * args["price"].(float64), nil
		},
	)

	assert.Equal(t, "calculate_total", sumTool.Name())

	result, err := sumTool.Call(newTestContext(t), map[string]any{
		"quantity": 10.0,
		"price":    2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, result)
}

func TestFunctionToolMissingRequired(t *testing.T) {
	echo := NewFunctionTool(
		"echo",
		"Echo the message",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["message"], nil
		},
	)

	_, err := echo.Call(newTestContext(t), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, core.ErrCodeValidation, toolErr.Code)
}

func TestFunctionToolTypeMismatch(t *testing.T) {
	echo := NewFunctionTool(
		"echo",
		"Echo the message",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["message"], nil
		},
	)

	_, err := echo.Call(newTestContext(t), map[string]any{"message": 42})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, core.ErrCodeValidation, toolErr.Code)
}

func TestFunctionToolExecutionError(t *testing.T) {
	failing := NewFunctionTool(
		"failing",
		"Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		},
	)

	_, err := failing.Call(newTestContext(t), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend unavailable")
}

func TestFunctionToolCustomToolErrorPreserved(t *testing.T) {
	failing := NewFunctionTool(
		"place",
		"Place an order",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, NewToolError("place", "session expired", core.ErrCodeAuth)
		},
	)

	_, err := failing.Call(newTestContext(t), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, core.ErrCodeAuth, toolErr.Code)
}

func TestFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Product search text"`
		Limit int    `json:"limit,omitempty"`
	}

	search := NewFunctionToolFromStruct(
		"search_products",
		"Search the catalog",
		args{},
		func(tc *core.ToolContext, a map[string]any) (any, error) {
			return a["query"], nil
		},
	)

	schema := search.Parameters()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, required)
}

func TestFunctionToolStagesHandoff(t *testing.T) {
	confirm := NewFunctionTool(
		"confirm_product",
		"Confirm the selected product and move to detail collection",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.Handoff(core.StageRequestDetails)
			return map[string]any{"confirmed": true}, nil
		},
	)

	tc := newTestContext(t)
	_, err := confirm.Call(tc, map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, tc.Staged().Handoff)
	assert.Equal(t, core.StageRequestDetails, *tc.Staged().Handoff)
}

type capturedEntry struct {
	level string
	msg   string
	args  []any
}

// captureLogger records entries so tests can assert on what was logged.
type captureLogger struct {
	entries []capturedEntry
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *captureLogger) record(level, msg string, args []any) {
	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) find(msg string) (capturedEntry, bool) {
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return capturedEntry{}, false
}

func TestFunctionToolCallLogsExecution(t *testing.T) {
	logger := &captureLogger{}
	sess := core.NewSession("sess-1", "auth-token")
	toolCtx := core.NewToolContext(context.Background(), sess, "fc-1", "hello", logger)

	okTool := NewFunctionTool("echo", "Echo the input", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return "ok", nil
		})

	_, err := okTool.Call(toolCtx, map[string]any{})
	require.NoError(t, err)

	entry, found := logger.find("tool execution completed")
	require.True(t, found)
	assert.Contains(t, entry.args, "echo")

	failTool := NewFunctionTool("boom", "Always fails", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})

	_, err = failTool.Call(toolCtx, map[string]any{})
	require.Error(t, err)

	entry, found = logger.find("tool execution failed")
	require.True(t, found)
	assert.Equal(t, "error", entry.level)
	assert.Contains(t, entry.args, "boom")
}
