package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/readaloud/internal/queue"
	"github.com/nikhilbhutani/readaloud/internal/speech"
)

type fakeSpeech struct {
	audio  []byte
	result *speech.Result
	err    error
	got    speech.Request
	text   string
}

func (f *fakeSpeech) Speak(_ context.Context, text string, voice speech.Voice, format speech.Format) ([]byte, speech.Format, error) {
	f.text = text
	if f.err != nil {
		return nil, "", f.err
	}
	_, format, err := speech.Normalize(voice, format)
	if err != nil {
		return nil, "", err
	}
	return f.audio, format, nil
}

func (f *fakeSpeech) GenerateOrGetCached(_ context.Context, req speech.Request) (*speech.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeQueue struct {
	payloads []queue.SpeechWarmPayload
	err      error
}

func (f *fakeQueue) EnqueueSpeechWarm(_ context.Context, p queue.SpeechWarmPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTTSHandler_Speak(t *testing.T) {
	svc := &fakeSpeech{audio: []byte("ID3audio")}
	h := NewTTSHandler(svc, nil)

	rec := post(h.Speak, `{"text":"Hello there.","format":"mp3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
	assert.Equal(t, "ID3audio", rec.Body.String())
	assert.Equal(t, "Hello there.", svc.text)

	rec = post(h.Speak, `{"text":"Hello there."}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/ogg", rec.Header().Get("Content-Type"))
}

func TestTTSHandler_SpeakValidation(t *testing.T) {
	h := NewTTSHandler(&fakeSpeech{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":""}`},
		{"blank text", `{"text":"   "}`},
		{"too long", `{"text":"` + strings.Repeat("a", maxSpeakChars+1) + `"}`},
		{"bad voice", `{"text":"Hi.","voice":"robot"}`},
		{"bad json", `{"text":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h.Speak, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorBody(t, rec)["message"])
		})
	}

	rec := post(h.Speak, `{"text":"Hi.","voice":"robot"}`)
	assert.Equal(t, "tts_failed", errorBody(t, rec)["error"])
}

func TestTTSHandler_Sentences(t *testing.T) {
	svc := &fakeSpeech{result: &speech.Result{
		FromCache:     false,
		CacheKey:      "abc",
		Audio:         []byte("Hello.|World."),
		Durations:     []float64{0.8, 0.6},
		TotalDuration: 1.55,
		Sentences:     []string{"Hello.", "World."},
		Format:        speech.FormatOpus,
		Voice:         speech.VoiceNova,
	}}
	h := NewTTSHandler(svc, nil)

	rec := post(h.Sentences, `{"text":"Hello. World.","sentences":["Hello.","World."]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Hello.", "World."}, svc.got.Sentences)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["from_cache"])
	assert.Equal(t, "abc", body["cache_key"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("Hello.|World.")), body["audio"])
	assert.InDelta(t, 1.55, body["total_duration"], 1e-9)
}

func TestTTSHandler_SentencesErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", &speech.TTSGenerationError{Kind: speech.KindInvalidInput, Message: "invalid voice"}, http.StatusBadRequest},
		{"no sentences", &speech.TTSGenerationError{Kind: speech.KindNoValidSentences, Message: "no valid sentences"}, http.StatusBadRequest},
		{"provider", &speech.TTSGenerationError{Kind: speech.KindProviderError, Message: "sentence 0", Err: errors.New("429")}, http.StatusBadGateway},
		{"reconcile", &speech.TTSGenerationError{Kind: speech.KindReconcileFailed, Message: "concat"}, http.StatusInternalServerError},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTTSHandler(&fakeSpeech{err: tt.err}, nil)
			rec := post(h.Sentences, `{"sentences":["Hi."]}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "tts_failed", errorBody(t, rec)["error"])
		})
	}
}

func TestTTSHandler_Warm(t *testing.T) {
	q := &fakeQueue{}
	h := NewTTSHandler(&fakeSpeech{}, q)

	rec := post(h.Warm, `{"text":"Hello. World.","sentences":["Hello.","World."]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	want := speech.DeriveCacheKey("Hello. World.", []string{"Hello.", "World."}, speech.VoiceNova, speech.FormatOpus)
	body := errorBody(t, rec)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, want, body["cache_key"])

	require.Len(t, q.payloads, 1)
	assert.Equal(t, queue.SpeechWarmPayload{
		Text:      "Hello. World.",
		Sentences: []string{"Hello.", "World."},
		Voice:     "nova",
		Format:    "opus",
		CacheKey:  want,
	}, q.payloads[0])
}

func TestTTSHandler_WarmRejectsBadInput(t *testing.T) {
	q := &fakeQueue{}
	h := NewTTSHandler(&fakeSpeech{}, q)

	assert.Equal(t, http.StatusBadRequest, post(h.Warm, `{"sentences":["  "]}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Warm, `{"sentences":["Hi."],"format":"wav"}`).Code)
	assert.Empty(t, q.payloads)
}

func TestTTSHandler_WarmWithoutQueue(t *testing.T) {
	h := NewTTSHandler(&fakeSpeech{}, nil)
	rec := post(h.Warm, `{"sentences":["Hi."]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "queue_unavailable", errorBody(t, rec)["error"])

	h = NewTTSHandler(&fakeSpeech{}, &fakeQueue{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, post(h.Warm, `{"sentences":["Hi."]}`).Code)
}
