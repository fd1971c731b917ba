package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *Signer {
	return NewSigner("tuition-test", "secret", time.Minute, time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	s := testSigner()
	pair, err := s.Issue(Identity{TeacherID: "t1", Email: "a@b.c", Name: "Asha"})
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := s.Parse(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.Subject)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, "Asha", claims.Name)

	_, err = s.Parse(pair.RefreshToken, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = s.Parse(pair.AccessToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	pair, err := testSigner().Issue(Identity{TeacherID: "t1"})
	require.NoError(t, err)

	other := NewSigner("tuition-test", "another-secret", time.Minute, time.Hour)
	_, err = other.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err)

	otherIssuer := NewSigner("someone-else", "secret", time.Minute, time.Hour)
	_, err = otherIssuer.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	s := testSigner()
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := s.Issue(Identity{TeacherID: "t1"})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}

func TestTeacherAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := testSigner()
	r := gin.New()
	r.GET("/me", TeacherAuth(s), func(c *gin.Context) {
		c.String(http.StatusOK, TeacherID(c))
	})
	pair, err := s.Issue(Identity{TeacherID: "t1"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid", "Bearer " + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "t1", w.Body.String())
			}
		})
	}
}
