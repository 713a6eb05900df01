package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/config"
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// fakeLink implements LinkStatus with a fixed value.
type fakeLink struct {
	connected bool
}

func (f *fakeLink) Connected() bool { return f.connected }

// fakeBroker implements BrokerStatus with a fixed value.
type fakeBroker struct {
	connected bool
}

func (f *fakeBroker) IsConnected() bool { return f.connected }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

// newTestServer builds a server over the given state without starting a listener.
func newTestServer(t *testing.T, state *speaker.State, link *fakeLink) *Server {
	t.Helper()

	srv, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:  testLogger(),
		State:   state,
		Speaker: link,
		Broker:  &fakeBroker{connected: true},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

// TestNewValidation verifies required dependency checks.
func TestNewValidation(t *testing.T) {
	state := speaker.NewState()
	link := &fakeLink{}
	logger := testLogger()

	tests := []struct {
		name string
		deps Deps
	}{
		{"missing logger", Deps{State: state, Speaker: link}},
		{"missing state", Deps{Logger: logger, Speaker: link}},
		{"missing speaker link", Deps{Logger: logger, State: state}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

// TestHandleHealth verifies the health endpoint payload.
func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, speaker.NewState(), &fakeLink{connected: true})
	router := srv.buildRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["speaker_connected"] != true {
		t.Errorf("speaker_connected = %v, want true", body["speaker_connected"])
	}
	if body["broker_connected"] != true {
		t.Errorf("broker_connected = %v, want true", body["broker_connected"])
	}
	if body["history_enabled"] != false {
		t.Errorf("history_enabled = %v, want false", body["history_enabled"])
	}
}

// TestHandleGetState verifies unknown fields are omitted and known fields rendered.
func TestHandleGetState(t *testing.T) {
	state := speaker.NewState()
	srv := newTestServer(t, state, &fakeLink{connected: true})
	router := srv.buildRouter()

	// Empty state: only the connection flag should appear.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d, want 200", rec.Code)
	}

	var empty map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := empty["volume"]; ok {
		t.Error("unknown volume should be omitted from response")
	}
	if empty["speaker_connected"] != true {
		t.Errorf("speaker_connected = %v, want true", empty["speaker_connected"])
	}

	// Populate a few fields and check they are rendered.
	state.Apply(speaker.Update{Kind: speaker.UpdateVolume, Volume: 17})
	state.Apply(speaker.Update{Kind: speaker.UpdateEqProfile, Profile: speaker.EqProfile{8, 6, 3, 5, 7}})

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["volume"] != float64(17) {
		t.Errorf("volume = %v, want 17", body["volume"])
	}
	if body["eq_profile"] != "8 6 3 5 7" {
		t.Errorf("eq_profile = %v, want \"8 6 3 5 7\"", body["eq_profile"])
	}
	if body["eq_preset"] != "rock" {
		t.Errorf("eq_preset = %v, want rock", body["eq_preset"])
	}
	if _, ok := body["device_name"]; ok {
		t.Error("unknown device_name should be omitted")
	}
}

// TestHistoryDisabled verifies history endpoints report unavailable without a store.
func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, speaker.NewState(), &fakeLink{})
	router := srv.buildRouter()

	for _, path := range []string{"/api/v1/history/", "/api/v1/history/volume"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, rec.Code)
		}
	}
}

// TestParseLimitParam verifies limit parsing.
func TestParseLimitParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"10", 10, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLimitParam(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLimitParam(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLimitParam(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
