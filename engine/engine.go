package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/chemfalcon/chembot/agent"
	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/session"
	"github.com/chemfalcon/chembot/translate"
)

// errorReply is returned when an agent turn fails. The cause is logged,
// never shown to the user.
const errorReply = "Sorry, I encountered an error. Please try again."

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Store persists sessions between turns. Defaults to an in-memory
	// store.
	Store session.Store

	// Translator converts text between the user language and English.
	// When nil, all input is treated as English.
	Translator translate.Translator

	// Logger receives routing events.
	Logger logging.Logger
}

// Engine owns the stage-to-agent routing table and the per-turn lifecycle.
type Engine struct {
	agents     map[core.Stage]*agent.Agent
	store      session.Store
	translator translate.Translator
	logger     logging.Logger
}

// New builds an engine from the given agents, keyed by the stage each agent
// owns. Sessions whose order has been placed stay with the final-stage
// agent, which answers them with a fixed confirmation.
func New(agents []*agent.Agent, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}

	store := opts.Store
	if store == nil {
		store = session.NewInMemoryStore()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	byStage := make(map[core.Stage]*agent.Agent, len(agents)+1)
	for _, a := range agents {
		byStage[a.Stage()] = a
	}
	if fin, ok := byStage[core.StageAddressPurpose]; ok {
		byStage[core.StageTerminal] = fin
	}

	return &Engine{
		agents:     byStage,
		store:      store,
		translator: opts.Translator,
		logger:     logger,
	}
}

// Route processes one chat turn and returns the reply in the user's
// language. The pipeline itself works in English; an unsupported language
// falls back to English untranslated. The session is persisted even when the
// agent turn fails so history and stage survive transient errors.
func (e *Engine) Route(ctx context.Context, sessionID, userAuth, message, language string) (string, error) {
	logger := logging.WithSession(e.logger, sessionID)

	lang, ok := translate.Normalize(language)
	if !ok {
		if language != "" {
			logger.Warn("engine.language.unsupported", "language", language)
		}
		lang = translate.DefaultLanguage
	}

	english := message
	if e.translator != nil && lang != translate.LangEnglish {
		translated, err := e.translator.ToEnglish(ctx, message, lang, sessionID)
		if err != nil {
			logger.Warn("engine.translate.inbound_failed", "error", err.Error())
		} else {
			english = translated
		}
	}

	sess, err := e.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		sess = core.NewSession(sessionID, userAuth)
		logger.Info("engine.session.created", "stage", string(sess.Stage))
	case err != nil:
		return "", fmt.Errorf("load session %s: %w", sessionID, err)
	default:
		sess.Stage = core.ParseStage(string(sess.Stage))
		logger.Info("engine.session.resumed", "stage", string(sess.Stage))
	}

	a, registered := e.agents[sess.Stage]
	if !registered {
		logger.Warn("engine.stage.unrouted", "stage", string(sess.Stage))
		sess = core.NewSession(sessionID, userAuth)
		a = e.agents[sess.Stage]
		if a == nil {
			return "", fmt.Errorf("no agent registered for stage %s", sess.Stage)
		}
	}

	reply := e.runTurn(ctx, a, sess, english, logger)

	final := reply
	if e.translator != nil && lang != translate.LangEnglish {
		translated, err := e.translator.FromEnglish(ctx, reply, lang, sessionID)
		if err != nil {
			logger.Warn("engine.translate.outbound_failed", "error", err.Error())
		} else {
			final = translated
		}
	}

	if err := e.store.Save(ctx, sess); err != nil {
		logger.Error("engine.session.save_failed", "error", err.Error())
	}

	return final, nil
}

// runTurn dispatches one English-language turn to the agent and folds its
// staged updates into the session. A failed turn leaves the session
// untouched apart from the timestamp refresh on save.
func (e *Engine) runTurn(ctx context.Context, a *agent.Agent, sess *core.Session, english string, logger logging.Logger) string {
	turn, err := a.Respond(ctx, sess, english)
	if err != nil {
		logger.Error("engine.agent.failed", "agent", a.Name(), "stage", string(sess.Stage), "error", err.Error())
		if turn != nil && turn.Reply != "" {
			return turn.Reply
		}
		return errorReply
	}

	e.applyTurn(sess, turn, logger)
	sess.AppendExchange(english, turn.Reply)

	return turn.Reply
}

// applyTurn commits the staged mutation batch and performs a requested
// handoff, including the one-time expansion the target stage needs.
func (e *Engine) applyTurn(sess *core.Session, turn *agent.Turn, logger logging.Logger) {
	if turn.Staged == nil {
		return
	}

	turn.Staged.Apply(sess)

	if turn.Staged.Handoff == nil {
		return
	}

	to := *turn.Staged.Handoff
	if !core.CanTransition(sess.Stage, to) {
		logger.Warn("engine.handoff.rejected", "from_stage", string(sess.Stage), "to_stage", string(to))
		return
	}

	from := sess.Stage
	sess.Stage = to

	switch to {
	case core.StageRequestDetails:
		core.ExpandForDetails(sess)
	case core.StageAddressPurpose:
		core.ExpandForFinalize(sess)
	}

	logger.Info("engine.handoff", "from_stage", string(from), "to_stage", string(to))
}
