package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/guard"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/sessions"
)

type stubSignOut struct {
	calls int
}

func (s *stubSignOut) SignOutDevice(w http.ResponseWriter, r *http.Request) error {
	s.calls++
	return nil
}

type harness struct {
	mr      *miniredis.Miniredis
	store   *sessions.RedisStore
	clock   *clock.Fake
	signOut *stubSignOut
	guard   guard.Guard
	served  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	fake := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	store := sessions.NewRedisStore(client, sessions.DefaultInactivityWindow, fake)
	h := &harness{mr: mr, store: store, clock: fake, signOut: &stubSignOut{}}
	h.guard = guard.Guard{
		Store:         store,
		Registry:      sessions.NewRegistry(store, sessions.RegistryConfig{Clock: fake}),
		SignOut:       h.signOut,
		Clock:         fake,
		TouchInterval: time.Minute,
	}
	return h
}

func (h *harness) seed(t *testing.T, id, userID string, lastActivity time.Time) {
	t.Helper()
	require.NoError(t, h.store.Create(context.Background(), sessions.Record{
		ID:           id,
		UserID:       userID,
		Device:       sessions.DeviceInfo{Type: sessions.DeviceDesktop},
		CreatedAt:    lastActivity,
		LastActivity: lastActivity,
	}))
}

func (h *harness) serve(mw func(http.Handler) http.Handler, id *auth.Identity, target string) *httptest.ResponseRecorder {
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.served++
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *id))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func creator(sessionID string) *auth.Identity {
	return &auth.Identity{UserID: "u1", Role: policy.RoleCreator, SessionID: sessionID, Source: auth.SourceCookie}
}

func TestRequireRouteRedirectsAnonymous(t *testing.T) {
	h := newHarness(t)
	rr := h.serve(h.guard.RequireRoute, nil, "/creator/dashboard")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
	assert.Zero(t, h.served)
}

func TestRequireRouteServesValidSession(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now().Add(-30*time.Minute))

	rr := h.serve(h.guard.RequireRoute, creator("S1"), "/creator/portfolio")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, h.served)
	assert.Equal(t, "active", rr.Header().Get(guard.HeaderSessionState))

	rec, err := h.store.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now(), rec.LastActivity)
}

func TestRequireRouteSkipsRecentTouch(t *testing.T) {
	h := newHarness(t)
	seen := h.clock.Now().Add(-10 * time.Second)
	h.seed(t, "S1", "u1", seen)

	rr := h.serve(h.guard.RequireRoute, creator("S1"), "/creator")
	assert.Equal(t, http.StatusOK, rr.Code)
	rec, err := h.store.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, seen, rec.LastActivity)
}

func TestRequireRouteReportsRefreshedState(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now().Add(-6*time.Hour-30*time.Minute))

	rr := h.serve(h.guard.RequireRoute, creator("S1"), "/creator/dashboard")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "active", rr.Header().Get(guard.HeaderSessionState))
	assert.Equal(t, "28800", rr.Header().Get(guard.HeaderSessionRemaining))

	rec, err := h.store.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now(), rec.LastActivity)
}

func TestRequireRouteRedirectsDeniedRole(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now())

	rr := h.serve(h.guard.RequireRoute, creator("S1"), "/admin/users")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, policy.DefaultRoute(policy.RoleCreator), rr.Header().Get("Location"))
	assert.Zero(t, h.served)
	assert.Zero(t, h.signOut.calls)
}

func TestRequireRouteSignsOutUnknownRole(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now())
	id := creator("S1")
	id.Role = policy.Role("guest")

	rr := h.serve(h.guard.RequireRoute, id, "/creator/dashboard")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
	assert.Equal(t, 1, h.signOut.calls)
	assert.Zero(t, h.served)
}

func TestRequireRouteWarnsBeforeExpiry(t *testing.T) {
	h := newHarness(t)
	h.guard.TouchInterval = 24 * time.Hour
	h.seed(t, "S1", "u1", h.clock.Now().Add(-6*time.Hour-30*time.Minute))

	rr := h.serve(h.guard.RequireRoute, creator("S1"), "/creator")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "warning", rr.Header().Get(guard.HeaderSessionState))
	assert.Equal(t, "5400", rr.Header().Get(guard.HeaderSessionRemaining))
}

func TestRequireRouteSignsOutEndedSession(t *testing.T) {
	h := newHarness(t)

	rr := h.serve(h.guard.RequireRoute, creator("gone"), "/creator")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
	assert.Equal(t, 1, h.signOut.calls)
	assert.Zero(t, h.served)
}

func TestRequireRouteSignsOutInactiveSession(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now().Add(-9*time.Hour))

	id := creator("S1")
	id.Source = auth.SourceToken
	rr := h.serve(h.guard.RequireRoute, id, "/creator")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 1, h.signOut.calls)
}

func TestRequireRouteStoreFailureIsNotExpiry(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now())
	h.mr.Close()

	rr := h.serve(h.guard.RequireRoute, creator("S1"), "/creator")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Zero(t, h.signOut.calls)
	assert.Zero(t, h.served)
}

func TestRequirePermissionAndFeature(t *testing.T) {
	h := newHarness(t)
	brand := &auth.Identity{UserID: "b1", Role: policy.RoleBrand, SessionID: "S1"}
	admin := &auth.Identity{UserID: "a1", Role: policy.RoleAdmin, SessionID: "S2"}

	rr := h.serve(h.guard.RequirePermission(policy.ActionView, policy.ResourceJobs), brand, "/jobs/health")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = h.serve(h.guard.RequirePermission(policy.ActionView, policy.ResourceJobs), admin, "/jobs/health")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.serve(h.guard.RequireFeature(policy.FeatureCampaignBuilder), brand, "/brand/campaigns/new")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = h.serve(h.guard.RequireFeature(policy.FeatureCampaignBuilder), creator("S3"), "/brand/campaigns/new")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.serve(h.guard.RequireFeature(policy.FeatureCampaignBuilder), nil, "/brand/campaigns/new")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
