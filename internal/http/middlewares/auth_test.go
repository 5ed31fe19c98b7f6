package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/auth"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
)

func TestAuth(t *testing.T) {
	verifier, err := auth.NewJWTVerifier("0123456789abcdef0123456789abcdef", "")
	require.NoError(t, err)
	valid, err := verifier.Sign(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantUID string
		wantErr error
	}{
		{name: "valid token", header: "Bearer " + valid, wantUID: "user-1"},
		{name: "no header", header: "", wantErr: apperrors.ErrUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantErr: apperrors.ErrUnauthorized},
		{name: "empty token", header: "Bearer   ", wantErr: apperrors.ErrUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", wantErr: apperrors.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			var seen string
			err := Auth(verifier)(func(c echo.Context) error {
				seen = UID(c)
				return nil
			})(c)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, seen)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUID, seen)
		})
	}
}

func TestUIDBeforeAuth(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Empty(t, UID(c))
}
