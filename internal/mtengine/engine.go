// Package mtengine selects and drives machine translation providers.
//
// A job names an engine preference; the selector expands it into an ordered
// attempt list and walks it per segment, falling back to the source text
// when every configured engine fails. Glossary terms are enforced on every
// provider's output.
package mtengine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/glossary"
	"github.com/traduceo/translation-engine/internal/observability"
)

// Kind identifies a translation engine.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindDeepL  Kind = "deepl"
	KindGoogle Kind = "google"
	KindOpenAI Kind = "openai"
	KindCustom Kind = "custom"
)

// Kinds lists every engine a job may request.
var Kinds = []Kind{KindAuto, KindDeepL, KindGoogle, KindOpenAI, KindCustom}

// ParseKind validates an engine name, defaulting to auto.
func ParseKind(s string) Kind {
	for _, k := range Kinds {
		if string(k) == s {
			return k
		}
	}
	return KindAuto
}

// Order expands a job's engine preference into the attempt sequence. A
// concrete preference goes first; auto leads with OpenAI when an industry
// is set (it can honor terminology instructions), then DeepL and Google.
// The full engine set is always appended so a broken preference still
// finds a fallback.
func Order(preference Kind, industry string) []Kind {
	var order []Kind
	push := func(k Kind) {
		for _, existing := range order {
			if existing == k {
				return
			}
		}
		order = append(order, k)
	}

	if preference != KindAuto {
		push(preference)
	} else {
		if industry != "" {
			push(KindOpenAI)
		}
		push(KindDeepL)
		push(KindGoogle)
	}

	push(KindOpenAI)
	push(KindDeepL)
	push(KindGoogle)
	push(KindCustom)
	push(KindAuto)

	return order
}

// Request is one text to translate.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Industry       string
	Glossary       []glossary.Term
}

// Result is a provider's translation with glossary already enforced.
type Result struct {
	Text    string
	Engine  Kind
	Raw     string // provider metadata, JSON
	Matches []glossary.Match
}

// provider attempts a translation. A nil result with a nil error means the
// provider is not configured or produced no output; the selector moves on.
type provider interface {
	Translate(ctx context.Context, req Request) (*Result, error)
}

// Translator walks engine attempt lists over the configured providers.
type Translator struct {
	openai *OpenAIClient
	deepl  *DeepLClient
	google *GoogleClient
	custom *CustomClient
	libre  *LibreClient
	logger *observability.Logger
}

// NewTranslator builds provider clients from configuration.
func NewTranslator(cfg config.EnginesConfig, logger *observability.Logger) *Translator {
	return &Translator{
		openai: NewOpenAIClient(cfg.OpenAI, cfg.Timeout),
		deepl:  NewDeepLClient(cfg.DeepL, cfg.Timeout),
		google: NewGoogleClient(cfg.Google, cfg.Timeout),
		custom: NewCustomClient(cfg.Custom, cfg.Timeout),
		libre:  NewLibreClient(cfg.Libre, cfg.Timeout),
		logger: logger,
	}
}

// Translate tries each engine in order and returns the first usable
// result. It never fails: when all engines decline or error, the source
// text comes back with glossary terms enforced and the engine marked auto.
func (t *Translator) Translate(ctx context.Context, req Request, order []Kind) *Result {
	if len(order) == 0 {
		order = []Kind{KindAuto}
	}

	trimmed := strings.TrimSpace(req.Text)
	if trimmed == "" {
		return &Result{Text: trimmed, Engine: order[0]}
	}
	attempt := req
	attempt.Text = trimmed

	var lastErr error
	for _, engine := range order {
		result, err := t.translateUsing(ctx, engine, attempt)
		if err != nil {
			lastErr = err
			t.logger.Warn().Err(err).Str("engine", string(engine)).Msg("translation engine failed")
			continue
		}
		if result != nil {
			return result
		}
	}

	if lastErr != nil {
		t.logger.Warn().Msg("all translation engines failed, falling back to source text")
	}

	reason := "no-engine"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	raw, _ := json.Marshal(map[string]any{"fallback": true, "reason": reason})
	text, matches := glossary.Apply(req.Text, req.Glossary)
	return &Result{
		Text:    text,
		Engine:  KindAuto,
		Raw:     string(raw),
		Matches: matches,
	}
}

func (t *Translator) translateUsing(ctx context.Context, engine Kind, req Request) (*Result, error) {
	switch engine {
	case KindOpenAI:
		return t.openai.Translate(ctx, req)
	case KindDeepL:
		return t.deepl.Translate(ctx, req)
	case KindGoogle:
		return t.google.Translate(ctx, req)
	case KindCustom:
		return t.custom.Translate(ctx, req)
	default:
		return t.translateAuto(ctx, req)
	}
}

// translateAuto chains the managed providers and finishes with the public
// LibreTranslate instance, which needs no credential.
func (t *Translator) translateAuto(ctx context.Context, req Request) (*Result, error) {
	for _, p := range []provider{t.openai, t.deepl, t.google} {
		result, err := p.Translate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return t.libre.Translate(ctx, req)
}
