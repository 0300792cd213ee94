package sessionshttp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/sessions"
	sessionshttp "github.com/collabhub/collabhub/internal/sessions/http"
)

type registries struct {
	base *sessions.Registry
}

func (r registries) Registry(id auth.Identity) *sessions.Registry {
	return r.base.ForDevice(id.Actor(), id.SessionID)
}

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
	router  chi.Router
	id      auth.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	fake := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	store := sessions.NewRedisStore(client, sessions.DefaultInactivityWindow, fake)

	h := &harness{
		mr:      mr,
		store:   store,
		clock:   fake,
		signOut: &stubSignOut{},
		id:      auth.Identity{UserID: "u1", Email: "c@creator.test", Role: policy.RoleCreator, SessionID: "S1"},
	}
	handler := sessionshttp.NewHandler(nil,
		registries{base: sessions.NewRegistry(store, sessions.RegistryConfig{Clock: fake})},
		h.signOut, store, fake, nil, sessionshttp.Config{})

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), h.id)))
		})
	})
	router.Route("/account", handler.MountRoutes)
	h.router = router
	return h
}

func (h *harness) seed(t *testing.T, id, userID string, lastActivity time.Time) {
	t.Helper()
	require.NoError(t, h.store.Create(context.Background(), sessions.Record{
		ID:           id,
		UserID:       userID,
		Device:       sessions.DeviceInfo{Type: sessions.DeviceDesktop, Browser: "Firefox", OS: "Linux"},
		CreatedAt:    lastActivity,
		LastActivity: lastActivity,
	}))
}

func (h *harness) do(method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

type listBody struct {
	Sessions []struct {
		ID      string `json:"id"`
		State   string `json:"state"`
		Current bool   `json:"current"`
	} `json:"sessions"`
}

func TestListSessionsSortedAndFlagged(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	h.seed(t, "S1", "u1", now.Add(-2*time.Hour))
	h.seed(t, "S2", "u1", now.Add(-5*time.Minute))
	h.seed(t, "S3", "u1", now.Add(-7*time.Hour))
	h.seed(t, "OLD", "u1", now.Add(-9*time.Hour))
	h.seed(t, "X1", "u2", now)

	rr := h.do(http.MethodGet, "/account/sessions")
	require.Equal(t, http.StatusOK, rr.Code)
	var body listBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 3)
	assert.Equal(t, "S2", body.Sessions[0].ID)
	assert.Equal(t, "S1", body.Sessions[1].ID)
	assert.True(t, body.Sessions[1].Current)
	assert.False(t, body.Sessions[0].Current)
	assert.Equal(t, "S3", body.Sessions[2].ID)
	assert.Equal(t, "expiring", body.Sessions[2].State)
}

func TestListSessionsEmptyIsConfirmedZero(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/account/sessions")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rr.Body.String())
}

func TestListSessionsStoreUnavailable(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now())
	h.mr.Close()

	rr := h.do(http.MethodGet, "/account/sessions")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"sessions"`)
}

func TestEndSpecificSession(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	h.seed(t, "S1", "u1", now)
	h.seed(t, "S2", "u1", now)
	h.seed(t, "X1", "u2", now)
	ctx := context.Background()

	rr := h.do(http.MethodDelete, "/account/sessions/S2")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, err := h.store.Get(ctx, "S2")
	assert.ErrorIs(t, err, sessions.ErrNotFound)
	assert.Zero(t, h.signOut.calls)

	rr = h.do(http.MethodDelete, "/account/sessions/S2")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(http.MethodDelete, "/account/sessions/X1")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, err = h.store.Get(ctx, "X1")
	assert.NoError(t, err)

	rr = h.do(http.MethodDelete, "/account/sessions/S1")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 1, h.signOut.calls)
}

func TestRevokeOtherSessions(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	for _, id := range []string{"S1", "S2", "S3"} {
		h.seed(t, id, "u1", now)
	}
	h.seed(t, "X1", "u2", now)

	rr := h.do(http.MethodPost, "/account/sessions/revoke-others")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ended":2}`, rr.Body.String())

	recs, err := h.store.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "S1", recs[0].ID)
	_, err = h.store.Get(context.Background(), "X1")
	assert.NoError(t, err)
}

func TestNavigation(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/account/navigation")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Role         string                   `json:"role"`
		DefaultRoute string                   `json:"default_route"`
		Navigation   []policy.NavigationEntry `json:"navigation"`
		Features     []string                 `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "creator", body.Role)
	assert.Equal(t, "/creator/dashboard", body.DefaultRoute)
	assert.Equal(t, policy.RoleNavigation(policy.RoleCreator), body.Navigation)
	assert.Contains(t, body.Features, "portfolio")
}

func readEvent(t *testing.T, reader *bufio.Reader) map[string]any {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var event map[string]any
			require.NoError(t, json.Unmarshal([]byte(data), &event))
			return event
		}
	}
}

func TestStatusStreamEndsWhenSessionEnds(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "S1", "u1", h.clock.Now().Add(-30*time.Minute))

	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/account/sessions/current/status", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Equal(t, "active", first["state"])

	require.NoError(t, h.store.Delete(context.Background(), "S1"))
	h.clock.Advance(sessions.DefaultCheckInterval)

	second := readEvent(t, reader)
	assert.Equal(t, "expired", second["state"])
	assert.Equal(t, "ended", second["reason"])
}
