package mtengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/glossary"
	"github.com/traduceo/translation-engine/internal/observability"
)

func TestOrderWithConcretePreference(t *testing.T) {
	order := Order(KindDeepL, "")

	assert.Equal(t, []Kind{KindDeepL, KindOpenAI, KindGoogle, KindCustom, KindAuto}, order)
}

func TestOrderAutoWithIndustry(t *testing.T) {
	order := Order(KindAuto, "legal")

	assert.Equal(t, []Kind{KindOpenAI, KindDeepL, KindGoogle, KindCustom, KindAuto}, order)
}

func TestOrderAutoWithoutIndustry(t *testing.T) {
	order := Order(KindAuto, "")

	assert.Equal(t, []Kind{KindDeepL, KindGoogle, KindOpenAI, KindCustom, KindAuto}, order)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindOpenAI, ParseKind("openai"))
	assert.Equal(t, KindAuto, ParseKind("bogus"))
}

func newTestTranslator(cfg config.EnginesConfig) *Translator {
	cfg.Timeout = 5 * time.Second
	if cfg.Libre.URL == "" {
		// Point at a dead port so the public instance is never called.
		cfg.Libre.URL = "http://127.0.0.1:1"
	}
	return NewTranslator(cfg, observability.Nop())
}

func TestTranslateUsesConfiguredEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/translate", r.URL.Path)
		assert.Equal(t, "DeepL-Auth-Key key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"translations":[{"text":"Bonjour","detected_source_language":"EN"}]}`))
	}))
	defer srv.Close()

	tr := newTestTranslator(config.EnginesConfig{
		DeepL: config.DeepLEngineConfig{APIKey: "key", BaseURL: srv.URL},
	})

	result := tr.Translate(context.Background(), Request{
		Text:           "Hello",
		TargetLanguage: "fr",
	}, Order(KindDeepL, ""))

	assert.Equal(t, "Bonjour", result.Text)
	assert.Equal(t, KindDeepL, result.Engine)
	assert.Contains(t, result.Raw, "EN")
}

func TestTranslateFallsThroughToNextEngine(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"translations":[{"translatedText":"Hola"}]}}`))
	}))
	defer working.Close()

	tr := newTestTranslator(config.EnginesConfig{
		DeepL:  config.DeepLEngineConfig{APIKey: "key", BaseURL: broken.URL},
		Google: config.GoogleEngineConfig{APIKey: "key", BaseURL: working.URL},
	})

	result := tr.Translate(context.Background(), Request{
		Text:           "Hello",
		TargetLanguage: "es",
	}, []Kind{KindDeepL, KindGoogle})

	assert.Equal(t, "Hola", result.Text)
	assert.Equal(t, KindGoogle, result.Engine)
}

func TestTranslateFallsBackToSourceText(t *testing.T) {
	tr := newTestTranslator(config.EnginesConfig{})

	terms := []glossary.Term{{Source: "contract", Target: "contrat"}}
	result := tr.Translate(context.Background(), Request{
		Text:           "The contract stands",
		TargetLanguage: "fr",
		Glossary:       terms,
	}, Order(KindAuto, ""))

	assert.Equal(t, "The contrat stands", result.Text)
	assert.Equal(t, KindAuto, result.Engine)
	assert.Contains(t, result.Raw, `"fallback":true`)
	require.Len(t, result.Matches, 1)
}

func TestTranslateEmptyText(t *testing.T) {
	tr := newTestTranslator(config.EnginesConfig{})

	result := tr.Translate(context.Background(), Request{
		Text:           "   ",
		TargetLanguage: "fr",
	}, Order(KindOpenAI, ""))

	assert.Equal(t, "", result.Text)
	assert.Equal(t, KindOpenAI, result.Engine)
}

func TestTranslateEnforcesGlossaryOnProviderOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"c1","model":"gpt-4o-mini","choices":[{"message":{"content":"Le invoice est prêt"}}]}`))
	}))
	defer srv.Close()

	tr := newTestTranslator(config.EnginesConfig{
		OpenAI: config.OpenAIEngineConfig{APIKey: "key", BaseURL: srv.URL},
	})

	result := tr.Translate(context.Background(), Request{
		Text:           "The invoice is ready",
		TargetLanguage: "fr",
		Glossary:       []glossary.Term{{Source: "invoice", Target: "facture"}},
	}, []Kind{KindOpenAI})

	assert.Equal(t, "Le facture est prêt", result.Text)
	assert.Equal(t, KindOpenAI, result.Engine)
}
