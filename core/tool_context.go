package core

import (
	"context"

	"github.com/chemfalcon/chembot/logging"
)

// StagedUpdates accumulates session mutations requested by tool calls during
// one turn. Nothing touches the session until the agent handler applies the
// batch, so a rejected tool call leaves no partial state behind.
type StagedUpdates struct {
	ProductID    *string
	ProductName  *string
	Product      map[string]any
	Request      *RequestType
	Details      map[string]string
	Address      map[string]any
	IndustryID   *string
	IndustryName *string
	OrderPlaced  bool
	Handoff      *Stage
}

// SetDetail stages a single validated field value.
func (u *StagedUpdates) SetDetail(field, value string) {
	if u.Details == nil {
		u.Details = map[string]string{}
	}
	u.Details[field] = value
}

// Empty reports whether no mutation has been staged.
func (u *StagedUpdates) Empty() bool {
	return u.ProductID == nil && u.ProductName == nil && u.Product == nil &&
		u.Request == nil && len(u.Details) == 0 && u.Address == nil &&
		u.IndustryID == nil && u.IndustryName == nil && !u.OrderPlaced && u.Handoff == nil
}

// Apply writes the staged batch onto the session. The handoff target is not
// applied here; the engine validates it against the transition table first.
func (u *StagedUpdates) Apply(s *Session) {
	if u.ProductID != nil {
		s.ProductID = *u.ProductID
	}
	if u.ProductName != nil {
		s.ProductName = *u.ProductName
	}
	if u.Product != nil {
		s.Product = u.Product
	}
	if u.Request != nil {
		s.Request = *u.Request
	}
	for field, value := range u.Details {
		s.SetDetail(field, value)
	}
	if u.Address != nil {
		s.Address = u.Address
	}
	if u.IndustryID != nil {
		s.IndustryID = *u.IndustryID
	}
	if u.IndustryName != nil {
		s.IndustryName = *u.IndustryName
	}
	if u.OrderPlaced {
		s.OrderPlaced = true
	}
}

// ToolContext is the constrained surface handed to tool implementations. It
// exposes the session for reads and the staged-update accumulator for writes,
// plus the function call id for log correlation.
type ToolContext struct {
	ctx            context.Context
	session        *Session
	functionCallID string
	rawInput       string
	logger         logging.Logger
	staged         *StagedUpdates
}

// NewToolContext binds a tool invocation to its session and turn.
func NewToolContext(ctx context.Context, session *Session, functionCallID, rawInput string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		session:        session,
		functionCallID: functionCallID,
		rawInput:       rawInput,
		logger:         logger,
		staged:         &StagedUpdates{},
	}
}

// WithCall returns a copy bound to another function call id. The copy shares
// the staged-update accumulator, so every tool call in a turn contributes to
// one batch.
func (tc *ToolContext) WithCall(functionCallID string) *ToolContext {
	clone := *tc
	clone.functionCallID = functionCallID
	return &clone
}

// Context returns the turn context.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Session returns the session for reads. Tools must stage writes through
// Staged rather than mutating the session directly.
func (tc *ToolContext) Session() *Session { return tc.session }

// FunctionCallID returns the model-assigned call id for correlation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// RawInput returns the untranslated user utterance for this turn. The final
// stage scans it as a last resort when resolving an address by bare number.
func (tc *ToolContext) RawInput() string { return tc.rawInput }

// Logger returns the turn logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Staged returns the mutation accumulator for this turn.
func (tc *ToolContext) Staged() *StagedUpdates { return tc.staged }

// Handoff stages a transfer of control to the named stage.
func (tc *ToolContext) Handoff(to Stage) {
	tc.staged.Handoff = &to
	tc.logger.Info("tool.handoff.request", "from_stage", string(tc.session.Stage), "to_stage", string(to), "function_call_id", tc.functionCallID)
}
