// Package chembot provides a high-level façade over the engine and its
// services for embedding the marketplace ordering chatbot in another Go
// program. Most applications interact with this package by:
//  1. Creating a Chembot via New() with a chat model and auth-token source
//  2. Calling Chat() per user message
//
// The façade delegates routing to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development; the HTTP
// deployment in cmd/chembot wires the same pieces explicitly.
package chembot

import (
	"context"

	"github.com/chemfalcon/chembot/agent"
	"github.com/chemfalcon/chembot/engine"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/marketplace"
	"github.com/chemfalcon/chembot/model"
	"github.com/chemfalcon/chembot/session"
	"github.com/chemfalcon/chembot/translate"
)

// Version is the library version, set at release time.
const Version = "0.1.0"

// Options configures a Chembot instance.
type Options struct {
	// MarketplaceBaseURL overrides the vendor API endpoint.
	MarketplaceBaseURL string

	// Store persists sessions (defaults to an in-memory store).
	Store session.Store

	// Translator converts between user languages and English. When nil, a
	// model-backed translator sharing the chat model is created; set
	// DisableTranslation to skip translation entirely.
	Translator         translate.Translator
	DisableTranslation bool

	// Logger defaults to a no-op logger if nil.
	Logger logging.Logger
}

// Chembot bundles the agent pipeline behind a single Chat entry point.
type Chembot struct {
	engine     *engine.Engine
	translator *translate.ModelTranslator // owned, closed by Close
}

// New assembles the three-stage pipeline around the given chat model.
func New(llm model.Model, optFns ...func(o *Options)) *Chembot {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	market := marketplace.NewClient(func(o *marketplace.Options) {
		if opts.MarketplaceBaseURL != "" {
			o.BaseURL = opts.MarketplaceBaseURL
		}
		o.Logger = logger
	})

	translator := opts.Translator
	var owned *translate.ModelTranslator
	if translator == nil && !opts.DisableTranslation {
		owned = translate.NewModelTranslator(llm, &translate.Options{Logger: logger})
		translator = owned
	}

	eng := engine.New([]*agent.Agent{
		agent.NewProductAgent(llm, market, logger),
		agent.NewDetailsAgent(llm, logger),
		agent.NewFinalizeAgent(llm, market, logger),
	}, &engine.Options{
		Store:      opts.Store,
		Translator: translator,
		Logger:     logger,
	})

	return &Chembot{engine: eng, translator: owned}
}

// Chat processes one user message and returns the reply in the user's
// language. The userAuth token authenticates the buyer against the
// marketplace; language accepts codes or names ("en", "Arabic", "Bangla").
func (c *Chembot) Chat(ctx context.Context, sessionID, userAuth, message, language string) (string, error) {
	return c.engine.Route(ctx, sessionID, userAuth, message, language)
}

// Close releases resources owned by the façade.
func (c *Chembot) Close() {
	if c.translator != nil {
		c.translator.Close()
	}
}
