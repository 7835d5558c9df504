package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/verbascape/verbascape/internal/config"
	"github.com/verbascape/verbascape/internal/observe"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	capmock "github.com/verbascape/verbascape/pkg/audio/capture/mock"
	"github.com/verbascape/verbascape/pkg/audio/nullio"
	"github.com/verbascape/verbascape/pkg/provider/image"
	imagemock "github.com/verbascape/verbascape/pkg/provider/image/mock"
	livemock "github.com/verbascape/verbascape/pkg/provider/live/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestApp(t *testing.T, providers *Providers) (*App, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			Live:  config.ProviderEntry{Name: "mock-live"},
			Image: config.ProviderEntry{Name: "mock-image"},
		},
		Tutor: config.TutorConfig{Voice: "Zephyr", Instructions: "Be nice."},
	}

	a, err := New(cfg, providers,
		WithDevice(&capmock.Device{Stream: capmock.NewStream(16)}),
		WithOutput(nullio.NewOutput(nullio.NewClock())),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv := httptest.NewServer(a.routes())
	t.Cleanup(srv.Close)
	t.Cleanup(a.sessions.Close)
	return a, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func doRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ── Scene endpoints ──────────────────────────────────────────────────────────

func TestSceneGenerate_ReturnsDataURL(t *testing.T) {
	img := &imagemock.Provider{Result: image.Panorama{
		MIMEType: "image/png",
		Data:     []byte{0x89, 0x50, 0x4E, 0x47},
	}}
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}, Image: img})

	resp := postJSON(t, srv.URL+"/v1/scene", map[string]string{"scene": "a rainy street market"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var body sceneResponse
	decodeJSON(t, resp, &body)
	if !strings.HasPrefix(body.DataURL, "data:image/png;base64,") {
		t.Errorf("data_url = %q; want data:image/png prefix", body.DataURL)
	}
	if body.Scene != "a rainy street market" {
		t.Errorf("scene = %q", body.Scene)
	}
	if len(img.GenerateCalls) != 1 || img.GenerateCalls[0].Scene != "a rainy street market" {
		t.Errorf("provider calls = %+v", img.GenerateCalls)
	}
}

func TestSceneGenerate_EmptyDescription(t *testing.T) {
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}, Image: &imagemock.Provider{}})

	resp := postJSON(t, srv.URL+"/v1/scene", map[string]string{"scene": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", resp.StatusCode)
	}
}

func TestSceneGenerate_NoProviderConfigured(t *testing.T) {
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}})

	resp := postJSON(t, srv.URL+"/v1/scene", map[string]string{"scene": "a beach"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503", resp.StatusCode)
	}
}

func TestSceneGenerate_ProviderError(t *testing.T) {
	img := &imagemock.Provider{GenerateErr: errors.New("quota exceeded")}
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}, Image: img})

	resp := postJSON(t, srv.URL+"/v1/scene", map[string]string{"scene": "a beach"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d; want 502", resp.StatusCode)
	}
}

func TestSceneGet_BeforeAndAfterGeneration(t *testing.T) {
	img := &imagemock.Provider{Result: image.Panorama{MIMEType: "image/png", Data: []byte{1}}}
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}, Image: img})

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scene")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status before generation = %d; want 404", resp.StatusCode)
	}

	postJSON(t, srv.URL+"/v1/scene", map[string]string{"scene": "a forest"})

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/scene")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status after generation = %d; want 200", resp.StatusCode)
	}
	var body sceneResponse
	decodeJSON(t, resp, &body)
	if body.Scene != "a forest" {
		t.Errorf("scene = %q; want %q", body.Scene, "a forest")
	}
}

// ── Session endpoints ────────────────────────────────────────────────────────

func TestSessionStart_ReturnsCreated(t *testing.T) {
	liveSess := livemock.NewSession(16)
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{Session: liveSess}})

	resp := postJSON(t, srv.URL+"/v1/session", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d; want 201", resp.StatusCode)
	}
	var body sessionResponse
	decodeJSON(t, resp, &body)
	if body.SessionID == "" {
		t.Error("session_id should not be empty")
	}
	if body.Provider != "mock-live" {
		t.Errorf("provider = %q; want mock-live", body.Provider)
	}
}

func TestSessionStart_ConflictWhenActive(t *testing.T) {
	liveSess := livemock.NewSession(16)
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{Session: liveSess}})

	postJSON(t, srv.URL+"/v1/session", nil)
	resp := postJSON(t, srv.URL+"/v1/session", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d; want 409", resp.StatusCode)
	}
}

func TestSessionStart_ConnectFailure(t *testing.T) {
	provider := &livemock.Provider{ConnectErr: errors.New("dial refused")}
	_, srv := newTestApp(t, &Providers{Live: provider})

	resp := postJSON(t, srv.URL+"/v1/session", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d; want 502", resp.StatusCode)
	}
}

func TestSessionStart_DeviceUnavailable(t *testing.T) {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{Live: config.ProviderEntry{Name: "mock-live"}},
		Tutor:     config.TutorConfig{Voice: "Zephyr", Instructions: "Be nice."},
	}
	provider := &livemock.Provider{Session: livemock.NewSession(4)}
	a, err := New(cfg, &Providers{Live: provider},
		WithDevice(&capmock.Device{OpenErr: capture.ErrDeviceUnavailable}),
		WithOutput(nullio.NewOutput(nullio.NewClock())),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.routes())
	t.Cleanup(srv.Close)

	resp := postJSON(t, srv.URL+"/v1/session", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503", resp.StatusCode)
	}
}

func TestSessionGet_NoSession(t *testing.T) {
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}})

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/session")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d; want 404", resp.StatusCode)
	}
}

func TestSessionStop_LifeCycle(t *testing.T) {
	liveSess := livemock.NewSession(16)
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{Session: liveSess}})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/v1/session")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stop without session: status = %d; want 404", resp.StatusCode)
	}

	postJSON(t, srv.URL+"/v1/session", nil)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/v1/session")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("stop: status = %d; want 204", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/session")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get after stop: status = %d; want 200", resp.StatusCode)
	}
	var body sessionResponse
	decodeJSON(t, resp, &body)
	if body.State != "closed" {
		t.Errorf("state after stop = %q; want closed", body.State)
	}
}

// ── Transcript endpoint ──────────────────────────────────────────────────────

func TestTranscript_NoSession(t *testing.T) {
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}})

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/transcript")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d; want 404", resp.StatusCode)
	}
}

func TestTranscript_EmptySessionReturnsNoTurns(t *testing.T) {
	liveSess := livemock.NewSession(16)
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{Session: liveSess}})

	postJSON(t, srv.URL+"/v1/session", nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/transcript")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	var body transcriptResponse
	decodeJSON(t, resp, &body)
	if len(body.Turns) != 0 {
		t.Errorf("turns = %d; want 0", len(body.Turns))
	}
}

// ── Probes ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}})

	resp := doRequest(t, http.MethodGet, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d; want 200", resp.StatusCode)
	}
}

func TestReadyz_FailsWithoutLiveProvider(t *testing.T) {
	_, srv := newTestApp(t, &Providers{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestApp(t, &Providers{Live: &livemock.Provider{}})

	resp := doRequest(t, http.MethodGet, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d; want 200", resp.StatusCode)
	}
}
