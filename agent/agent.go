package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/model"
	"github.com/chemfalcon/chembot/tool"
)

// historyWindow is the number of past exchanges replayed to the model each
// turn. Older context lives only in the session document.
const historyWindow = 18

// apologyReply is returned when a turn fails inside the agent. The underlying
// cause is logged, never shown to the user.
const apologyReply = "I apologize, but I'm having trouble processing your request. Please try again."

// wrongStageReply is returned when a turn reaches an agent that does not own
// the session's current stage. The session is left untouched.
const wrongStageReply = "That step has been handed over to another part of the conversation. Please continue with the current step."

// Turn is the outcome of one agent turn. Staged carries the session mutations
// requested by tool calls; the engine decides whether to apply them.
type Turn struct {
	Reply  string
	Staged *core.StagedUpdates
}

// Agent is one conversational specialist bound to a session stage.
type Agent struct {
	name  string
	stage core.Stage
	llm   model.Model
	tools map[string]tool.Tool
	order []string // tool declaration order exposed to the model

	// instruction builds the stage-specific system prompt from session state.
	instruction func(s *core.Session) (string, error)

	// prepare runs before the model is consulted. A non-empty reply with
	// done=true short-circuits the turn (used by the finalize stage when
	// upstream data cannot be fetched).
	prepare func(ctx context.Context, s *core.Session, logger logging.Logger) (string, bool, error)

	// augment may rewrite the model-visible input, e.g. to inject an
	// auto-trigger note on first entry to a stage. The raw input is kept
	// for history and tool access.
	augment func(s *core.Session, input string) string

	logger logging.Logger
}

func ensureLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOpLogger{}
	}
	return l
}

// Name returns the specialist's name.
func (a *Agent) Name() string { return a.name }

// Stage returns the session stage this specialist serves.
func (a *Agent) Stage() core.Stage { return a.stage }

// register wires a tool into the agent, preserving declaration order.
func (a *Agent) register(t tool.Tool) {
	a.tools[t.Name()] = t
	a.order = append(a.order, t.Name())
}

// definitions exposes the registered tools in declaration order.
func (a *Agent) definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(a.order))
	for _, name := range a.order {
		t := a.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Respond runs one turn: optional preparation, an initial model call, tool
// dispatch, and a follow-up model call when tools ran. Errors inside the turn
// degrade to an apology reply; the error is logged and also returned so the
// engine can record it.
func (a *Agent) Respond(ctx context.Context, s *core.Session, input string) (*Turn, error) {
	logger := logging.WithSession(a.logger, s.ID)
	turn := &Turn{Staged: &core.StagedUpdates{}}

	// A terminal session still belongs to the final-stage agent, which
	// answers it with a fixed confirmation.
	if s.Stage != a.stage && !(s.Stage == core.StageTerminal && a.stage == core.StageAddressPurpose) {
		logger.Warn("agent.stage.mismatch", "agent", a.name, "session_stage", string(s.Stage))
		turn.Reply = wrongStageReply
		return turn, nil
	}

	if a.prepare != nil {
		reply, done, err := a.prepare(ctx, s, logger)
		if err != nil {
			logger.Error("agent.prepare.failed", "agent", a.name, "error", err.Error())
		}
		if done {
			turn.Reply = reply
			return turn, nil
		}
	}

	modelInput := input
	if a.augment != nil {
		modelInput = a.augment(s, input)
	}

	instructions, err := a.instruction(s)
	if err != nil {
		logger.Error("agent.instruction.failed", "agent", a.name, "error", err.Error())
		turn.Reply = apologyReply
		return turn, fmt.Errorf("build instruction: %w", err)
	}

	messages := a.buildMessages(s, modelInput)

	start := time.Now()
	resp, err := a.llm.Complete(ctx, model.Request{
		Instructions: instructions,
		Messages:     messages,
		Tools:        a.definitions(),
	})
	logging.LogModelCall(logger, a.llm.Info().Name, time.Since(start), err)
	if err != nil {
		turn.Reply = apologyReply
		return turn, fmt.Errorf("model call: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		turn.Reply = resp.Content
		return turn, nil
	}

	toolCtx := core.NewToolContext(ctx, s, "", input, logger)
	followUp := append(messages, model.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	for _, call := range resp.ToolCalls {
		result := a.dispatch(toolCtx.WithCall(call.ID), call)
		followUp = append(followUp, model.Message{
			Role:       "tool",
			Content:    result,
			ToolCallID: call.ID,
		})
	}
	turn.Staged = toolCtx.Staged()

	start = time.Now()
	final, err := a.llm.Complete(ctx, model.Request{
		Instructions: instructions,
		Messages:     followUp,
	})
	logging.LogModelCall(logger, a.llm.Info().Name, time.Since(start), err)
	if err != nil {
		turn.Reply = apologyReply
		return turn, fmt.Errorf("follow-up model call: %w", err)
	}

	turn.Reply = final.Content
	return turn, nil
}

// buildMessages replays the recent history and appends the current input.
func (a *Agent) buildMessages(s *core.Session, input string) []model.Message {
	history := s.RecentHistory(historyWindow)
	messages := make([]model.Message, 0, len(history)*2+1)
	for _, exchange := range history {
		messages = append(messages,
			model.Message{Role: "user", Content: exchange.User},
			model.Message{Role: "assistant", Content: exchange.Agent},
		)
	}
	return append(messages, model.Message{Role: "user", Content: input})
}

// dispatch executes one tool call and renders the result as the JSON text fed
// back to the model. Tool failures become structured error payloads the model
// can recover from; they never abort the turn.
func (a *Agent) dispatch(toolCtx *core.ToolContext, call model.ToolCall) string {
	t, ok := a.tools[call.Name]
	if !ok {
		a.logger.Warn("agent.tool.unknown", "agent", a.name, "tool", call.Name)
		return errorPayload(core.ErrCodeUnknown, fmt.Sprintf("unknown tool %q", call.Name))
	}

	// Malformed arguments degrade to an empty set; required-field validation
	// then reports what is missing instead of aborting the turn.
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			a.logger.Warn("agent.tool.bad_arguments", "agent", a.name, "tool", call.Name, "error", err.Error())
			args = map[string]any{}
		}
	}

	result, err := t.Call(toolCtx, args)
	if err != nil {
		var toolErr *tool.ToolError
		if errors.As(err, &toolErr) {
			return errorPayload(toolErr.Code, toolErr.Message)
		}
		return errorPayload(core.ErrCodeUnknown, err.Error())
	}

	rendered, err := json.Marshal(result)
	if err != nil {
		return errorPayload(core.ErrCodeParsing, "tool result could not be serialized")
	}
	return string(rendered)
}

func errorPayload(code, message string) string {
	raw, _ := json.Marshal(map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
	return string(raw)
}
