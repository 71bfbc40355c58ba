package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieStore_roundTrip(t *testing.T) {
	s := NewCookieStore([]byte("secret"), testOptions())
	cookies := save(t, s, nil, []byte(`{"username":"ann"}`))
	require.Len(t, cookies, 1)

	got, err := s.Load(requestWith(cookies))
	require.NoError(t, err)
	assert.Equal(t, `{"username":"ann"}`, string(got))
}

func TestCookieStore_noCookie(t *testing.T) {
	s := NewCookieStore([]byte("secret"), testOptions())
	_, err := s.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCookieStore_rejectsTamperedToken(t *testing.T) {
	s := NewCookieStore([]byte("secret"), testOptions())
	cookies := save(t, s, nil, []byte(`{"username":"ann"}`))
	cookies[0].Value += "a"

	_, err := s.Load(requestWith(cookies))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCookieStore_rejectsOtherSecret(t *testing.T) {
	cookies := save(t, NewCookieStore([]byte("one"), testOptions()), nil, []byte("x"))

	_, err := NewCookieStore([]byte("two"), testOptions()).Load(requestWith(cookies))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCookieStore_expired(t *testing.T) {
	s := NewCookieStore([]byte("secret"), testOptions())
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	cookies := save(t, s, nil, []byte("x"))

	s.now = time.Now
	_, err := s.Load(requestWith(cookies))
	assert.True(t, errors.Is(err, ErrNoSession), "err = %v", err)
}

func TestCookieStore_clearExpiresCookie(t *testing.T) {
	s := NewCookieStore([]byte("secret"), testOptions())
	rec := httptest.NewRecorder()
	require.NoError(t, s.Clear(rec, httptest.NewRequest(http.MethodGet, "/logout", nil)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sp", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
