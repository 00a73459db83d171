package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "classattend-test"
)

func TestIssueParse(t *testing.T) {
	tok, err := Issue("L1", RoleLecturer, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	require.Equal(t, "L1", claims.Subject)
	require.Equal(t, RoleLecturer, claims.Role)

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, "L1", sub)
}

func TestParse_readsRegisteredSubject(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "S7",
		"role": RoleStudent,
		"iss":  testIssuer,
		"exp":  time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	claims, err := Parse(signed, testKey, testIssuer)
	require.NoError(t, err)
	require.Equal(t, "S7", claims.Subject)
	require.Equal(t, RoleStudent, claims.Role)
}

func TestIssue_rejectsBadInput(t *testing.T) {
	_, err := Issue(" ", RoleStudent, testIssuer, testKey, time.Hour)
	require.Error(t, err)
	_, err = Issue("S1", "admin", testIssuer, testKey, time.Hour)
	require.Error(t, err)
	_, err = Issue("S1", RoleStudent, testIssuer, "", time.Hour)
	require.Error(t, err)
}

func TestParse_failures(t *testing.T) {
	tok, err := Issue("S1", RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tok.AccessToken, "wrong-key", testIssuer)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse(tok.AccessToken, testKey, "someone-else")
	require.ErrorIs(t, err, ErrIssuerMismatch)

	expired, err := Issue("S1", RoleStudent, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, testKey, testIssuer)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "S1"}, Role: RoleStudent}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Parse(none, testKey, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequire(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/lecturer", Require(testKey, testIssuer, RoleLecturer), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Subject)
	})

	lecturer, err := Issue("L1", RoleLecturer, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	student, err := Issue("S1", RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + student.AccessToken, status: http.StatusForbidden},
		{name: "ok", header: "Bearer " + lecturer.AccessToken, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + lecturer.AccessToken, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/lecturer", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				require.Equal(t, "L1", w.Body.String())
			}
		})
	}
}
