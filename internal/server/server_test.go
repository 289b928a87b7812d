package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldnode/fndh-power/internal/envsensor"
	"github.com/fieldnode/fndh-power/internal/power"
)

type fakeSwitcher struct {
	bits map[int]bool
	err  error
}

func (f *fakeSwitcher) SetBit(pos int, on bool) error {
	if f.err != nil {
		return f.err
	}
	if f.bits == nil {
		f.bits = make(map[int]bool)
	}
	f.bits[pos] = on
	return nil
}

type fakeReader struct {
	raw uint16
	err error
}

func (f *fakeReader) ReadRaw(chip, channel int) (uint16, error) {
	return f.raw, f.err
}

type fakeEnv struct {
	reading envsensor.Reading
	err     error
}

func (f *fakeEnv) Read() (envsensor.Reading, error) {
	return f.reading, f.err
}

func newTestService(t *testing.T, exp1, exp2 power.Switcher, adc power.RawReader, env EnvReader) *Service {
	t.Helper()
	reg, err := power.NewRegistry(exp1, exp2, adc, power.DefaultCalibration, 0)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(reg, env, nil)
	svc.delay = 0 // no inter-channel pacing in tests
	return svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/ping", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp okResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.OK {
		t.Error("ping should report ok")
	}
}

func TestTurnOnPositionalResults(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	router := NewRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/outputs/on", namesRequest{Names: []string{"A1", "Z9", "B2"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var resp resultsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 positional results, got %d", len(resp.Results))
	}
	if resp.Results[0] == nil || !*resp.Results[0] {
		t.Error("A1 should succeed")
	}
	if resp.Results[1] != nil {
		t.Error("unknown name Z9 should yield null")
	}
	if resp.Results[2] == nil || !*resp.Results[2] {
		t.Error("B2 should succeed")
	}

	// The raw JSON must carry an actual null, not false.
	if !strings.Contains(w.Body.String(), "null") {
		t.Errorf("body should contain null for unknown name: %s", w.Body.String())
	}
}

func TestTurnOnThenIsOn(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	router := NewRouter(svc)

	doJSON(t, router, http.MethodPost, "/outputs/on", namesRequest{Names: []string{"A7"}})
	w := doJSON(t, router, http.MethodPost, "/outputs/ison", namesRequest{Names: []string{"A7", "A8"}})

	var resp resultsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Results[0] == nil || !*resp.Results[0] {
		t.Error("A7 should report on")
	}
	if resp.Results[1] == nil || *resp.Results[1] {
		t.Error("A8 should report off")
	}
}

func TestTurnOnLowercaseNames(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodPost, "/outputs/on", namesRequest{Names: []string{"a1"}})

	var resp resultsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Results[0] == nil || !*resp.Results[0] {
		t.Error("lowercase names should resolve")
	}
}

func TestSwitchFailureReportsFalse(t *testing.T) {
	// A1 routes through expander 2; make it fail.
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{err: errors.New("bus fault")}, &fakeReader{}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodPost, "/outputs/on", namesRequest{Names: []string{"A1"}})

	var resp resultsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Results[0] == nil {
		t.Fatal("known name should not yield null")
	}
	if *resp.Results[0] {
		t.Error("failed switch should report false")
	}
}

func TestTurnAllOnAndOff(t *testing.T) {
	exp1, exp2 := &fakeSwitcher{}, &fakeSwitcher{}
	svc := newTestService(t, exp1, exp2, &fakeReader{}, &fakeEnv{})
	router := NewRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/outputs/all/on", nil)
	var resp okResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.OK {
		t.Error("all-on should succeed with healthy expanders")
	}
	if len(exp1.bits)+len(exp2.bits) != 32 {
		t.Errorf("expected 32 bits touched, got %d", len(exp1.bits)+len(exp2.bits))
	}

	doJSON(t, router, http.MethodPost, "/outputs/all/off", nil)
	for pos, on := range exp1.bits {
		if on {
			t.Errorf("expander 1 bit %d still on after all-off", pos)
		}
	}
}

func TestReadings(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{raw: 4096}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/readings", nil)

	var resp readingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Outputs) != 32 {
		t.Fatalf("expected 32 outputs, got %d", len(resp.Outputs))
	}
	a1 := resp.Outputs["A1"]
	if a1.Volts != 60.0 {
		t.Errorf("A1 volts: got %v, want 60.0", a1.Volts)
	}
	if a1.Milliamps != 1000.0 {
		t.Errorf("A1 milliamps: got %v, want 1000.0", a1.Milliamps)
	}
	if a1.State != "OFF" {
		t.Errorf("A1 state: got %s, want OFF", a1.State)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %s", resp.Timestamp)
	}
}

func TestReadingsSenseFailureOmitsOutputs(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{err: errors.New("spi fault")}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/readings", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("sense failures should not fail the request, got %d", w.Code)
	}
	var resp readingsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Outputs) != 0 {
		t.Errorf("expected no outputs when every sense fails, got %d", len(resp.Outputs))
	}
}

func TestEnvironment(t *testing.T) {
	env := &fakeEnv{reading: envsensor.Reading{Humidity: 50.9, TempC: 22.2}}
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, env)
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/environment", nil)

	var resp environmentResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Humidity != 50.9 || resp.TempC != 22.2 {
		t.Errorf("got %+v", resp)
	}
}

func TestEnvironmentFailure(t *testing.T) {
	env := &fakeEnv{err: errors.New("sensor wake: timeout")}
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, env)
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/environment", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestVersion(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/version", nil)

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["version"] == "" {
		t.Error("version should not be empty")
	}
}

func TestRebootQueuesAction(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodPost, "/reboot", nil)

	if w.Code != http.StatusAccepted {
		t.Errorf("status: got %d, want 202", w.Code)
	}
	select {
	case a := <-svc.Actions():
		if a != ActionReboot {
			t.Errorf("action: got %s, want %s", a, ActionReboot)
		}
	default:
		t.Error("reboot should queue an action")
	}
}

func TestShutdownQueuesAction(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	doJSON(t, NewRouter(svc), http.MethodPost, "/shutdown", nil)

	select {
	case a := <-svc.Actions():
		if a != ActionShutdown {
			t.Errorf("action: got %s, want %s", a, ActionShutdown)
		}
	default:
		t.Error("shutdown should queue an action")
	}
}

func TestBadBodyRejected(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	req := httptest.NewRequest(http.MethodPost, "/outputs/on", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	NewRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	NewRouter(svc).ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("request id: got %q, want abc-123", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	svc := newTestService(t, &fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{}, &fakeEnv{})
	w := doJSON(t, NewRouter(svc), http.MethodGet, "/ping", nil)

	if w.Header().Get("X-Request-Id") == "" {
		t.Error("a request id should be generated when the caller sends none")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg, err := power.NewRegistry(&fakeSwitcher{}, &fakeSwitcher{}, &fakeReader{raw: 2048}, power.DefaultCalibration, 0)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(reg, &fakeEnv{reading: envsensor.Reading{Humidity: 40, TempC: 25}}, NewMetrics())
	svc.delay = 0
	router := NewRouter(svc)

	// Populate the gauges, then scrape.
	doJSON(t, router, http.MethodGet, "/readings", nil)
	doJSON(t, router, http.MethodGet, "/environment", nil)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)

	body := w.Body.String()
	for _, want := range []string{"fndh_output_volts", "fndh_output_milliamps", "fndh_temperature_celsius", "fndh_humidity_percent", "fndh_rpc_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestLocalIPLoopback(t *testing.T) {
	ip, err := LocalIP("127.0.0.1:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ip != "127.0.0.1" {
		t.Errorf("got %s, want 127.0.0.1", ip)
	}
}
