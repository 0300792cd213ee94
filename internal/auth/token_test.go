package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/policy"
)

func TestTokenRoundTrip(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	issuer, err := auth.NewTokenIssuer("s3cret", time.Hour, fake)
	require.NoError(t, err)

	in := auth.Identity{UserID: "42", Email: "c@creator.test", Role: policy.RoleCreator, SessionID: "S1"}
	token, expires, err := issuer.Issue(in)
	require.NoError(t, err)
	assert.Equal(t, fake.Now().Add(time.Hour), expires)

	out, err := issuer.Verify(token)
	require.NoError(t, err)
	in.Source = auth.SourceToken
	assert.Equal(t, in, out)

	fake.Advance(time.Hour + time.Second)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenRejectsForeignSecret(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("one", time.Hour, nil)
	require.NoError(t, err)
	other, err := auth.NewTokenIssuer("two", time.Hour, nil)
	require.NoError(t, err)

	token, _, err := other.Issue(auth.Identity{UserID: "1", SessionID: "S1"})
	require.NoError(t, err)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	noSession, _, err := issuer.Issue(auth.Identity{UserID: "1"})
	require.NoError(t, err)
	_, err = issuer.Verify(noSession)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := auth.NewTokenIssuer("", time.Hour, nil)
	assert.Error(t, err)
}

func TestMiddlewareResolvesIdentity(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("s3cret", time.Hour, nil)
	require.NoError(t, err)

	var got auth.Identity
	var found bool
	handler := auth.Middleware(issuer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = auth.IdentityFromContext(r.Context())
	}))

	token, _, err := issuer.Issue(auth.Identity{UserID: "5", Role: policy.RoleAdmin, SessionID: "S5"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.True(t, found)
	assert.Equal(t, "S5", got.SessionID)
	assert.Equal(t, auth.SourceToken, got.Source)

	found = false
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.False(t, found)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, found)
}
