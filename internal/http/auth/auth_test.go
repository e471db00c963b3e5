package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/internal/http/auth"
)

func TestAuthenticator_Middleware(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a := auth.New("6969", "s3cret", time.Hour, auth.WithClock(clock))

	token, expires, err := a.Issue()
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	otherSecret, _, err := auth.New("6969", "other", time.Hour, auth.WithClock(clock)).Issue()
	require.NoError(t, err)

	expired, _, err := auth.New("6969", "s3cret", time.Hour, auth.WithClock(func() time.Time {
		return now.Add(-2 * time.Hour)
	})).Issue()
	require.NoError(t, err)

	type testCase struct {
		name       string
		headers    map[string]string
		wantStatus int
	}

	tests := []testCase{
		{name: "NoCredentials", wantStatus: http.StatusUnauthorized},
		{name: "WrongKey", headers: map[string]string{auth.KeyHeader: "1234"}, wantStatus: http.StatusUnauthorized},
		{name: "Key", headers: map[string]string{auth.KeyHeader: "6969"}, wantStatus: http.StatusNoContent},
		{name: "Bearer", headers: map[string]string{"Authorization": "Bearer " + token}, wantStatus: http.StatusNoContent},
		{name: "ForeignToken", headers: map[string]string{"Authorization": "Bearer " + otherSecret}, wantStatus: http.StatusUnauthorized},
		{name: "ExpiredToken", headers: map[string]string{"Authorization": "Bearer " + expired}, wantStatus: http.StatusUnauthorized},
		{name: "MalformedBearer", headers: map[string]string{"Authorization": "Bearer nope"}, wantStatus: http.StatusUnauthorized},
	}

	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/audit-log", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuthenticator_EmptyKeyLocksAPI(t *testing.T) {
	a := auth.New("", "", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(auth.KeyHeader, "")
	assert.False(t, a.ValidKey(req))

	_, _, err := a.Issue()
	assert.ErrorIs(t, err, auth.ErrSessionsDisabled)
}
