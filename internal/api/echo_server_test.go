package api

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/trace"
)

var testConfig = model.Config{Vocab: 256, Embed: 4, Hidden: 8, Output: 256}

func testModel(t *testing.T) *model.Model {
	t.Helper()
	zero, err := model.New(testConfig)
	require.NoError(t, err)
	arrays, err := model.Export(zero)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(9, 9))
	src := model.MapSource{}
	for _, a := range arrays {
		for i := range a.Data {
			a.Data[i] = float32(rng.NormFloat64()) * 0.5
		}
		src[a.Name] = a
	}
	m, err := model.Load(src, testConfig)
	require.NoError(t, err)
	return m
}

func newTestEcho(t *testing.T, maxConcurrent int) *echo.Echo {
	t.Helper()
	provider := NewBoundedEngineProvider(testModel(t), maxConcurrent)
	service := NewInferenceService(provider, inference.DefaultDefaults())
	server := NewServer(service, nil)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerateJSON(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 2)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate",
		`{"seed":"hello","length":5,"temperature":0,"neuron":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "gen_"))
	assert.Equal(t, "hello", resp.Seed)
	assert.Equal(t, resp.Seed+resp.Generated, resp.Text)
	assert.Len(t, []rune(resp.Generated), 6)
	assert.Len(t, resp.Activations, 10)
	assert.Equal(t, 10, resp.Stats.Steps)

	// Greedy decoding is deterministic.
	again := doJSON(t, e, http.MethodPost, "/v1/generate",
		`{"seed":"hello","length":5,"temperature":0,"neuron":2}`)
	var resp2 GenerateResponse
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &resp2))
	assert.Equal(t, resp.Generated, resp2.Generated)
	assert.NotEqual(t, resp.ID, resp2.ID)
}

func TestGenerateCBOR(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	length, temp := 3, 0.0
	body, err := cbor.Marshal(GenerateRequest{Seed: "ab", Length: &length, Temperature: &temp})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, mimeCBOR)
	req.Header.Set(echo.HeaderAccept, mimeCBOR)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeCBOR, rec.Header().Get(echo.HeaderContentType))

	var resp GenerateResponse
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ab", resp.Seed)
	assert.Equal(t, 4, resp.Stats.Generated)
	assert.Empty(t, resp.Activations)
}

func TestGenerateRejectsNonFiniteFloats(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	nan, inf := float32(math.NaN()), float32(math.Inf(1))
	length, neuron := 2, 1
	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"neuron_range_nan", GenerateRequest{Seed: "ab", Length: &length, Neuron: &neuron, NeuronRange: &nan}},
		{"neuron_range_inf", GenerateRequest{Seed: "ab", Length: &length, Neuron: &neuron, NeuronRange: &inf}},
		{"override_nan", GenerateRequest{Seed: "ab", Length: &length, Neuron: &neuron, Override: &nan}},
	}
	for _, tc := range tests {
		body, err := cbor.Marshal(tc.req)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/render", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, mimeCBOR)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s: %s", tc.name, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "invalid_request_error", tc.name)
	}
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate?stream=true", `{"seed":"x","length":2,"temperature":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	out := rec.Body.String()
	assert.Equal(t, 3, strings.Count(out, "event: char\n"))
	assert.Equal(t, 1, strings.Count(out, "event: done\n"))
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	tests := []struct {
		name string
		body string
	}{
		{"nothing_to_do", `{"seed":"a","length":-1,"neuron":-1}`},
		{"negative_temperature", `{"seed":"a","temperature":-0.5}`},
		{"consume_while_generating", `{"seed":"a","length":4,"temperature":-1}`},
		{"neuron_out_of_range", `{"seed":"a","length":1,"neuron":8}`},
		{"unrepresentable_seed", `{"seed":"→","length":1}`},
		{"empty_seed", `{"seed":"","length":1}`},
		{"unknown_field", `{"seed":"a","top_k":3}`},
		{"bad_width", `{"seed":"a","length":1,"width":10}`},
		{"malformed", `{"seed":`},
	}
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s: %s", tc.name, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "invalid_request_error", tc.name)
	}
}

func TestVisualizeOnlyWithConsumeTemperature(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"seed":"abc","length":-1,"temperature":-1,"neuron":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Generated)
	assert.Len(t, resp.Activations, 3)
}

func TestRenderReturnsPNG(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	rec := doJSON(t, e, http.MethodPost, "/v1/render", `{"seed":"render me","length":20,"temperature":0.5,"rng_seed":1,"neuron":1,"width":120}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), 22, "29 characters wrap at width 120")
}

func TestTraceReturnsArrowStream(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	rec := doJSON(t, e, http.MethodPost, "/v1/trace", `{"seed":"abcd","length":2,"temperature":0,"neuron":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, trace.ContentType, rec.Header().Get(echo.HeaderContentType))

	pts, err := trace.ReadIPC(rec.Body)
	require.NoError(t, err)
	require.Len(t, pts, 7)
	assert.True(t, pts[5].HasActivation)
	assert.False(t, pts[6].HasActivation)
	assert.True(t, pts[4].Generated)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	rec := doJSON(t, e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, testConfig, health.Model)
	assert.NotEmpty(t, health.Backend)

	doJSON(t, e, http.MethodPost, "/v1/generate", `{"seed":"m","length":1,"temperature":0}`)
	rec = doJSON(t, e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mlstm_steps_total")
	assert.Contains(t, rec.Body.String(), "mlstm_sessions_total")
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, 1)
	rec := doJSON(t, e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>mlstm</title>")
	assert.Contains(t, rec.Body.String(), "/v1/render")
}

func TestBusyWhenNoSlotFrees(t *testing.T) {
	t.Parallel()
	provider := NewBoundedEngineProvider(testModel(t), 1)
	require.NoError(t, provider.sem.Acquire(context.Background(), 1))
	defer provider.sem.Release(1)

	e := echo.New()
	NewServer(NewInferenceService(provider, inference.DefaultDefaults()), nil).Register(e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"seed":"a","length":1}`)).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "server_busy")
}

func TestAcceptsCBOR(t *testing.T) {
	t.Parallel()
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"application/json", false},
		{"application/cbor", true},
		{"text/html, application/cbor;q=0.9", true},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(echo.HeaderAccept, tc.accept)
		assert.Equal(t, tc.want, acceptsCBOR(r), tc.accept)
	}
}
