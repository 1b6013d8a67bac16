package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/verdict/pkg/config"
	"mercator-hq/verdict/pkg/engine"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "default timeout", timeout: 0, expectedTimeout: DefaultCheckTimeout},
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected 0 checks, got %d", len(checker.ListChecks()))
			}
		})
	}
}

func TestRegisterAndUnregisterCheck(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("rules", func(context.Context) error { return nil })
	checker.RegisterCheck("history", func(context.Context) error { return nil })

	names := checker.ListChecks()
	if len(names) != 2 || names[0] != "history" || names[1] != "rules" {
		t.Errorf("ListChecks() = %v, want [history rules]", names)
	}

	checker.UnregisterCheck("history")
	if names := checker.ListChecks(); len(names) != 1 {
		t.Errorf("ListChecks() = %v after unregister, want one check", names)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed string
		wantMsg    string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one unhealthy",
			checks: map[string]CheckFunc{
				"a":      func(context.Context) error { return nil },
				"broken": func(context.Context) error { return errors.New("component unhealthy") },
			},
			wantStatus: StatusNotReady,
			wantFailed: "broken",
			wantMsg:    "component unhealthy",
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"slow": func(context.Context) error {
					time.Sleep(200 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusNotReady,
			wantFailed: "slow",
			wantMsg:    "health check timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("CheckReadiness().Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d check results, want %d", len(status.Checks), len(tt.checks))
			}
			for name, result := range status.Checks {
				wantResult := StatusOK
				if name == tt.wantFailed {
					wantResult = StatusUnhealthy
				}
				if result.Status != wantResult {
					t.Errorf("check %q status = %q, want %q", name, result.Status, wantResult)
				}
			}
			if tt.wantFailed != "" && status.Checks[tt.wantFailed].Message != tt.wantMsg {
				t.Errorf("check %q message = %q, want %q", tt.wantFailed, status.Checks[tt.wantFailed].Message, tt.wantMsg)
			}
		})
	}
}

type fakeRules struct{ rs *engine.RuleSet }

func (f *fakeRules) Current() *engine.RuleSet { return f.rs }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestRuleSetCheck(t *testing.T) {
	provider := &fakeRules{}
	check := RuleSetCheck(provider)

	if err := check(context.Background()); err == nil {
		t.Error("RuleSetCheck() error = nil before load, want error")
	}

	rs, err := engine.Compile(nil, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	provider.rs = rs
	if err := check(context.Background()); err != nil {
		t.Errorf("RuleSetCheck() error = %v after load, want nil", err)
	}
}

func TestPingCheck(t *testing.T) {
	if err := PingCheck(fakePinger{})(context.Background()); err != nil {
		t.Errorf("PingCheck() error = %v, want nil", err)
	}
	if err := PingCheck(fakePinger{err: errors.New("database is locked")})(context.Background()); err == nil {
		t.Error("PingCheck() error = nil, want error")
	}
}

func TestHandlers(t *testing.T) {
	provider := &fakeRules{}
	checker := New(time.Second)
	checker.RegisterCheck("rules", RuleSetCheck(provider))

	mux := http.NewServeMux()
	cfg := &config.HealthConfig{Enabled: true, LivenessPath: "/healthz", ReadinessPath: "/readyz"}
	Register(mux, checker, cfg, VersionInfo{Version: "1.2.3", Commit: "abc123"})

	tests := []struct {
		name       string
		method     string
		path       string
		loaded     bool
		wantCode   int
		wantStatus string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK, wantStatus: StatusOK},
		{name: "liveness head", method: http.MethodHead, path: "/healthz", wantCode: http.StatusOK},
		{name: "liveness post", method: http.MethodPost, path: "/healthz", wantCode: http.StatusMethodNotAllowed},
		{name: "not ready", method: http.MethodGet, path: "/readyz", wantCode: http.StatusServiceUnavailable, wantStatus: StatusNotReady},
		{name: "ready", method: http.MethodGet, path: "/readyz", loaded: true, wantCode: http.StatusOK, wantStatus: StatusReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider.rs = nil
			if tt.loaded {
				provider.rs, _ = engine.Compile(nil, nil)
			}

			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantStatus == "" {
				return
			}
			var status Status
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to unmarshal version: %v", err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}
}
