package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/devicepulse/internal/liveness"
	"github.com/HerbHall/devicepulse/internal/services"
	"github.com/HerbHall/devicepulse/internal/testutil"
	"github.com/HerbHall/devicepulse/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type evalFunc func(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) liveness.Verdict

func (f evalFunc) Evaluate(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) liveness.Verdict {
	return f(ctx, tenantID, deviceID)
}

func newTestServer(t *testing.T, eval LivenessEvaluator, opts ...Option) *Server {
	t.Helper()
	return New(":0", eval, NewAuthenticator(testSecret, zap.NewNop()), zap.NewNop(), opts...)
}

func issue(t *testing.T, id Identity) string {
	t.Helper()
	tok, err := NewAuthenticator(testSecret, nil).IssueToken(id, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func pingRequest(deviceID, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/device/"+deviceID+"/ping", http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeVerdict(t *testing.T, body io.Reader) liveness.Verdict {
	t.Helper()
	var v liveness.Verdict
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, evalFunc(nil))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-DevicePulse-Version") == "" {
		t.Error("missing X-DevicePulse-Version header")
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, evalFunc(nil))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nothing", http.NoBody))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestPing_ReturnsVerdictForCallerTenant(t *testing.T) {
	tenant := models.NewTenantID()
	device := models.NewDeviceID()

	var gotTenant models.TenantID
	var gotDevice models.DeviceID
	s := newTestServer(t, evalFunc(func(_ context.Context, tid models.TenantID, did models.DeviceID) liveness.Verdict {
		gotTenant, gotDevice = tid, did
		return liveness.Verdict{Online: true, LastSeen: 1735689600000, Message: liveness.MessageOnline}
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, pingRequest(device.String(), issue(t, Identity{TenantID: tenant, Authority: AuthorityTenantAdmin})))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if gotTenant != tenant {
		t.Errorf("tenant = %s, want %s", gotTenant, tenant)
	}
	if gotDevice != device {
		t.Errorf("device = %s, want %s", gotDevice, device)
	}
	v := decodeVerdict(t, w.Body)
	if !v.Online || v.LastSeen != 1735689600000 || v.Message != "Device is online" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestPing_NotFoundIsStill200(t *testing.T) {
	s := newTestServer(t, evalFunc(func(context.Context, models.TenantID, models.DeviceID) liveness.Verdict {
		return liveness.Verdict{Message: liveness.MessageNotFound}
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, pingRequest(models.NewDeviceID().String(),
		issue(t, Identity{TenantID: models.NewTenantID(), Authority: AuthorityCustomerUser})))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	raw := w.Body.String()
	if !strings.Contains(raw, `"online":false`) || !strings.Contains(raw, `"lastSeen":0`) {
		t.Errorf("body = %s", raw)
	}
}

func TestPing_Rejections(t *testing.T) {
	tenant := models.NewTenantID()
	valid := issue(t, Identity{TenantID: tenant, Authority: AuthorityTenantAdmin})
	sysAdmin := issue(t, Identity{TenantID: tenant, Authority: AuthoritySysAdmin})

	otherKey, err := NewAuthenticator([]byte("other"), nil).IssueToken(
		Identity{TenantID: tenant, Authority: AuthorityTenantAdmin}, time.Now(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := NewAuthenticator(testSecret, nil).IssueToken(
		Identity{TenantID: tenant, Authority: AuthorityTenantAdmin}, time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		deviceID string
		token    string
		want     int
	}{
		{"missing token", models.NewDeviceID().String(), "", http.StatusUnauthorized},
		{"garbage token", models.NewDeviceID().String(), "not-a-jwt", http.StatusUnauthorized},
		{"wrong key", models.NewDeviceID().String(), otherKey, http.StatusUnauthorized},
		{"expired", models.NewDeviceID().String(), expired, http.StatusUnauthorized},
		{"wrong authority", models.NewDeviceID().String(), sysAdmin, http.StatusForbidden},
		{"malformed device id", "not-a-uuid", valid, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			s := newTestServer(t, evalFunc(func(context.Context, models.TenantID, models.DeviceID) liveness.Verdict {
				called = true
				return liveness.Verdict{}
			}))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, pingRequest(tc.deviceID, tc.token))

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tc.want, w.Body.String())
			}
			if called {
				t.Error("evaluator called for rejected request")
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content-type = %q, want application/problem+json", ct)
			}

			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode problem: %v", err)
			}
			if int(body["status"].(float64)) != tc.want {
				t.Errorf("problem status = %v, want %d", body["status"], tc.want)
			}
			for _, key := range []string{"online", "lastSeen", "message"} {
				if _, ok := body[key]; ok {
					t.Errorf("rejection body carries verdict field %q: %v", key, body)
				}
			}
		})
	}
}

func TestPing_PanicBecomes500Verdict(t *testing.T) {
	s := newTestServer(t, evalFunc(func(context.Context, models.TenantID, models.DeviceID) liveness.Verdict {
		panic("serializer exploded")
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, pingRequest(models.NewDeviceID().String(),
		issue(t, Identity{TenantID: models.NewTenantID(), Authority: AuthorityTenantAdmin})))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	v := decodeVerdict(t, w.Body)
	if v.Online || v.LastSeen != 0 {
		t.Errorf("verdict = %+v, want offline with lastSeen 0", v)
	}
	if v.Message != "Ping error: serializer exploded" {
		t.Errorf("message = %q", v.Message)
	}
}

func TestPing_RateLimitedPerTenant(t *testing.T) {
	s := newTestServer(t, evalFunc(func(context.Context, models.TenantID, models.DeviceID) liveness.Verdict {
		return liveness.Verdict{Message: liveness.MessageNotFound}
	}), WithRateLimiter(NewTenantLimiter(0.001, 1)))

	busy := issue(t, Identity{TenantID: models.NewTenantID(), Authority: AuthorityTenantAdmin})
	quiet := issue(t, Identity{TenantID: models.NewTenantID(), Authority: AuthorityTenantAdmin})
	device := models.NewDeviceID().String()

	codes := make([]int, 0, 3)
	for _, tok := range []string{busy, busy, quiet} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, pingRequest(device, tok))
		codes = append(codes, w.Code)
	}

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := liveness.NewMetrics(reg)

	st := testutil.NewStore(t)
	ctx := context.Background()
	devices, err := services.NewSQLiteDeviceRepository(ctx, st)
	if err != nil {
		t.Fatalf("device repository: %v", err)
	}
	eval := liveness.NewEvaluator(liveness.NewDeviceLookup(devices, zap.NewNop()), zap.NewNop(),
		liveness.WithMetrics(metrics))

	s := newTestServer(t, eval, WithMetrics(reg))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, pingRequest(models.NewDeviceID().String(),
		issue(t, Identity{TenantID: models.NewTenantID(), Authority: AuthorityTenantAdmin})))
	if w.Code != http.StatusOK {
		t.Fatalf("ping status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `devicepulse_ping_verdicts_total{outcome="not_found"} 1`) {
		t.Errorf("metrics output missing not_found verdict:\n%s", w.Body.String())
	}
}

func TestPing_EndToEndWithRegistry(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	devices, err := services.NewSQLiteDeviceRepository(ctx, st)
	if err != nil {
		t.Fatalf("device repository: %v", err)
	}

	clock := testutil.NewClock()
	tenant := models.NewTenantID()
	fresh := testutil.NewDevice(testutil.WithTenant(tenant))
	stale := testutil.NewDevice(testutil.WithTenant(tenant),
		testutil.WithCreatedAt(clock.Now().Add(-10*time.Minute)))
	foreign := testutil.NewDevice()
	for _, d := range []*models.Device{&fresh, &stale, &foreign} {
		if err := devices.Create(ctx, d); err != nil {
			t.Fatalf("create device: %v", err)
		}
	}

	eval := liveness.NewEvaluator(liveness.NewDeviceLookup(devices, zap.NewNop()), zap.NewNop(),
		liveness.WithClock(clock.Now))
	s := newTestServer(t, eval)
	token := issue(t, Identity{TenantID: tenant, Authority: AuthorityCustomerUser})

	tests := []struct {
		name     string
		device   models.DeviceID
		online   bool
		lastSeen int64
		message  string
	}{
		{"fresh", fresh.ID, true, fresh.CreatedTime, "Device is online"},
		{"stale", stale.ID, false, stale.CreatedTime, "Device is offline"},
		{"other tenant", foreign.ID, false, 0, "Device not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, pingRequest(tc.device.String(), token))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			v := decodeVerdict(t, w.Body)
			if v.Online != tc.online || v.LastSeen != tc.lastSeen || v.Message != tc.message {
				t.Errorf("verdict = %+v, want {%v %d %q}", v, tc.online, tc.lastSeen, tc.message)
			}
		})
	}
}
