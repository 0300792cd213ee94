package shared

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenRoundTrip(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "browser-1"}

	token, err := m.Token(sess)
	require.NoError(t, err)
	again, err := m.Token(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.Verify(sess, token))
	assert.ErrorIs(t, m.Verify(sess, token+"x"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.Verify(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.Verify(nil, token), ErrCSRFTokenMissing)
}

func TestCSRFTokenBoundToSessionID(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "before"}
	token, err := m.Token(sess)
	require.NoError(t, err)

	sess.ID = "after"
	assert.ErrorIs(t, m.Verify(sess, token), ErrCSRFTokenMismatch)

	fresh, err := m.Token(sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
	assert.NoError(t, m.Verify(sess, fresh))

	m.Drop(sess)
	assert.ErrorIs(t, m.Verify(sess, fresh), ErrCSRFTokenMissing)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CSRFHeader, "from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req))

	form := url.Values{CSRFFormField: {"from-form"}}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, "from-form", TokenFromRequest(req))
}
