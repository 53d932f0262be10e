package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/janani/maai/models"
)

func newSarvamServer(t *testing.T, handler http.HandlerFunc) (*SarvamClient, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewSarvamClient(srv.URL, "test-key", 2*time.Second, zap.NewNop()), &hits
}

func TestTranslate_SameLanguageIsNoop(t *testing.T) {
	primary := &fakeStrategy{name: "primary", out: "x"}
	llm := completerReturning("x", nil)
	tr := NewTranslator(primary, nil, llm, zap.NewNop())

	assert.Equal(t, "hello", tr.Translate(context.Background(), "hello", "en-US", "en-IN"))
	assert.Equal(t, "नमस्ते", tr.Translate(context.Background(), "नमस्ते", "hindi", "hi-IN"))
	assert.Zero(t, primary.calls)
	assert.Zero(t, llm.calls())
}

func TestTranslate_BlankInputIsNoop(t *testing.T) {
	primary := &fakeStrategy{name: "primary", out: "x"}
	tr := NewTranslator(primary, nil, nil, zap.NewNop())

	assert.Equal(t, "   ", tr.Translate(context.Background(), "   ", "hi-IN", "en-IN"))
	assert.Zero(t, primary.calls)
}

func TestTranslate_PrimarySuccess(t *testing.T) {
	sarvam, hits := newSarvamServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-subscription-key"))

		var req models.SarvamTranslateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi-IN", req.SourceLanguageCode)
		assert.Equal(t, EnglishCode, req.TargetLanguageCode)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.SarvamTranslateResponse{TranslatedText: "I am very tired"})
	})
	llm := completerReturning("unused", nil)
	tr := NewTranslator(sarvam, nil, llm, zap.NewNop())

	out := tr.Translate(context.Background(), "mujhe bahut thakan ho rahi hai", "Hindi", "english")

	assert.Equal(t, "I am very tired", out)
	assert.Equal(t, int32(1), hits.Load())
	assert.Zero(t, llm.calls())
}

func TestTranslate_PrimaryFailureFallsBackOnce(t *testing.T) {
	sarvam, hits := newSarvamServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusInternalServerError)
	})
	llm := completerReturning("मैं बहुत थकी हुई हूँ\nextra commentary", nil)
	tr := NewTranslator(sarvam, nil, llm, zap.NewNop())

	out := tr.Translate(context.Background(), "I am very tired", "en-IN", "hi-IN")

	assert.Equal(t, "मैं बहुत थकी हुई हूँ", out)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.prompts[0], "Hindi")
}

func TestTranslate_EverythingFailsReturnsOriginal(t *testing.T) {
	primary := &fakeStrategy{name: "primary", err: errors.New("network down")}
	llm := completerReturning("", errors.New("model down"))
	tr := NewTranslator(primary, nil, llm, zap.NewNop())

	out := tr.Translate(context.Background(), "I am very tired", "en-IN", "ta-IN")

	assert.Equal(t, "I am very tired", out)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, llm.calls())
}

func TestTranslate_CacheServesRepeats(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewRedisTranslationCache(client, time.Hour)

	primary := &fakeStrategy{name: "primary", out: "आराम करें"}
	tr := NewTranslator(primary, cache, nil, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "आराम करें", tr.Translate(ctx, "Please rest", "en-IN", "hi-IN"))
	assert.Equal(t, "आराम करें", tr.Translate(ctx, "Please rest", "en-IN", "hi-IN"))
	assert.Equal(t, 1, primary.calls)

	key := translationKey("Please rest", "en-IN", "hi-IN")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestRedisTranslationCache_Miss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, err := NewRedisTranslationCache(client, time.Minute).Translate(context.Background(), "x", "en-IN", "hi-IN")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTranslateEnforced_CleanScriptNoEscalation(t *testing.T) {
	primary := &fakeStrategy{name: "primary", out: "आराम करें और पानी पिएं।"}
	llm := completerReturning("unused", nil)
	tr := NewTranslator(primary, nil, llm, zap.NewNop())

	res := tr.TranslateEnforced(context.Background(), "Rest and drink water.", EnglishCode, "hi-IN")

	assert.Equal(t, "आराम करें और पानी पिएं।", res.Text)
	assert.Equal(t, "hi-IN", res.ResolvedLanguage)
	assert.Zero(t, llm.calls())
}

func TestTranslateEnforced_LatinLeakEscalatesToDefault(t *testing.T) {
	primary := &fakeStrategy{name: "primary", out: "Rest செய்யுங்கள்"}
	llm := completerReturning("आराम करें।", nil)
	tr := NewTranslator(primary, nil, llm, zap.NewNop())

	res := tr.TranslateEnforced(context.Background(), "Please rest.", EnglishCode, "ta-IN")

	assert.Equal(t, "आराम करें।", res.Text)
	assert.Equal(t, SafeDefaultLanguage, res.ResolvedLanguage)
	require.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.prompts[0], "Devanagari")
	assert.False(t, ContainsLatin(res.Text))
}

func TestTranslateEnforced_EscalationFailureKeepsFirst(t *testing.T) {
	primary := &fakeStrategy{name: "primary", out: "Rest செய்யுங்கள்"}
	llm := completerReturning("", errors.New("model down"))
	tr := NewTranslator(primary, nil, llm, zap.NewNop())

	res := tr.TranslateEnforced(context.Background(), "Please rest.", EnglishCode, "ta-IN")

	assert.Equal(t, "Rest செய்யுங்கள்", res.Text)
	assert.Equal(t, "ta-IN", res.ResolvedLanguage)
}

func TestTranslateEnforced_EnglishTargetNotEscalated(t *testing.T) {
	llm := completerReturning("unused", nil)
	tr := NewTranslator(nil, nil, llm, zap.NewNop())

	res := tr.TranslateEnforced(context.Background(), "Please rest.", EnglishCode, "en-US")

	assert.Equal(t, "Please rest.", res.Text)
	assert.Equal(t, EnglishCode, res.ResolvedLanguage)
	assert.Zero(t, llm.calls())
}
