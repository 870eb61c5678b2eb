package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/model"
)

// Translator converts text between a user language and English.
// Implementations must be safe for concurrent use.
type Translator interface {
	// ToEnglish translates text from sourceLang into English.
	ToEnglish(ctx context.Context, text, sourceLang, sessionID string) (string, error)

	// FromEnglish translates English text into targetLang.
	FromEnglish(ctx context.Context, text, targetLang, sessionID string) (string, error)
}

// DefaultCacheTTL bounds how long a translation result is reused.
const DefaultCacheTTL = 30 * time.Minute

const translateInstruction = "You are a professional translator. Translate the user's text from %s to %s. " +
	"Preserve numbers, product names, chemical formulas and formatting exactly. " +
	"Return ONLY the translated text, no explanations."

var languageDisplay = map[string]string{
	LangEnglish: "English",
	LangArabic:  "Arabic",
	LangBengali: "Bengali",
}

// Options configures a ModelTranslator. Zero values select defaults.
type Options struct {
	// Memory overrides the Arabic term memory.
	Memory *TermMemory

	// Queue overrides the admission queue.
	Queue *Queue

	// CacheTTL bounds the per-text result cache.
	CacheTTL time.Duration

	// Logger receives translation flow events.
	Logger logging.Logger
}

// ModelTranslator translates through a chat model. Results are cached per
// text and direction, and every model call passes through the admission
// queue.
type ModelTranslator struct {
	llm    model.Model
	memory *TermMemory
	queue  *Queue
	cache  *gocache.Cache
	logger logging.Logger
}

// NewModelTranslator creates a translator backed by the given chat model.
func NewModelTranslator(llm model.Model, opts *Options) *ModelTranslator {
	if opts == nil {
		opts = &Options{}
	}

	memory := opts.Memory
	if memory == nil {
		memory = NewTermMemory()
	}

	queue := opts.Queue
	if queue == nil {
		queue = NewQueue(DefaultQueueLimit, DefaultQueueWindow)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ModelTranslator{
		llm:    llm,
		memory: memory,
		queue:  queue,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Memory exposes the Arabic term memory so callers can register vocabulary.
func (t *ModelTranslator) Memory() *TermMemory {
	return t.memory
}

// Close releases the admission queue.
func (t *ModelTranslator) Close() {
	t.queue.Close()
}

// ToEnglish translates text from sourceLang into English. Arabic input first
// has remembered terms swapped back to English so the model cannot
// mistranslate them. Failures fall back to the original text.
func (t *ModelTranslator) ToEnglish(ctx context.Context, text, sourceLang, sessionID string) (string, error) {
	lang, ok := Normalize(sourceLang)
	if !ok || lang == LangEnglish || strings.TrimSpace(text) == "" {
		return text, nil
	}

	processed := text
	if lang == LangArabic {
		var applied map[string]string
		processed, applied = t.memory.ReverseLookup(text)
		if len(applied) > 0 {
			t.logger.Debug("translate.memory.reverse", "session_id", sessionID, "applied", applied)
		}
	}

	translated, err := t.translate(ctx, processed, lang, LangEnglish)
	if err != nil {
		t.logger.Warn("translate.to_english.failed", "session_id", sessionID, "source_lang", lang, "error", err)
		return text, nil
	}

	t.logger.Info("translate.to_english", "session_id", sessionID, "source_lang", lang)

	return translated, nil
}

// FromEnglish translates English text into targetLang. Language-suffixed
// field values matching the target language are shielded from translation,
// and the Arabic term memory is applied after the model pass. Failures fall
// back to the English text.
func (t *ModelTranslator) FromEnglish(ctx context.Context, text, targetLang, sessionID string) (string, error) {
	lang, ok := Normalize(targetLang)
	if !ok || lang == LangEnglish || strings.TrimSpace(text) == "" {
		return text, nil
	}

	cleaned, preserved := PreserveFields(text, lang)
	if len(preserved) > 0 {
		t.logger.Debug("translate.fields.preserved", "session_id", sessionID, "count", len(preserved))
	}

	translated, err := t.translate(ctx, cleaned, LangEnglish, lang)
	if err != nil {
		t.logger.Warn("translate.from_english.failed", "session_id", sessionID, "target_lang", lang, "error", err)
		return text, nil
	}

	if lang == LangArabic {
		var applied map[string]string
		translated, applied = t.memory.ApplyArabic(translated)
		if len(applied) > 0 {
			t.logger.Debug("translate.memory.applied", "session_id", sessionID, "applied", applied)
		}
	}

	translated = RestoreFields(translated, preserved)

	t.logger.Info("translate.from_english", "session_id", sessionID, "target_lang", lang)

	return translated, nil
}

// translate performs one cached, queue-admitted model call.
func (t *ModelTranslator) translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	key := sourceLang + "|" + targetLang + "|" + text
	if cached, ok := t.cache.Get(key); ok {
		return cached.(string), nil
	}

	translated, err := t.queue.Do(ctx, func() (string, error) {
		return t.complete(ctx, text, sourceLang, targetLang)
	})
	if err != nil {
		return "", err
	}

	t.cache.Set(key, translated, gocache.DefaultExpiration)

	return translated, nil
}

func (t *ModelTranslator) complete(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	resp, err := t.llm.Complete(ctx, model.Request{
		Instructions: fmt.Sprintf(translateInstruction, languageDisplay[sourceLang], languageDisplay[targetLang]),
		Messages: []model.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", err
	}

	translated := strings.TrimSpace(resp.Content)
	if translated == "" {
		return "", fmt.Errorf("empty translation for %s -> %s", sourceLang, targetLang)
	}

	return translated, nil
}
