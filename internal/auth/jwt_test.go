package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

const testSecret = "test-secret"

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func TestAuthenticate_QueryToken(t *testing.T) {
	token, err := IssueToken(testSecret, "kitchenhub", Identity{UserID: 1, KitchenID: 10}, time.Hour, testNow)
	require.NoError(t, err)

	a := NewJWTAuthenticator(testSecret, "kitchenhub", fixedNow)
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)

	id, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 1, KitchenID: 10}, id)
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	token, err := IssueToken(testSecret, "", Identity{UserID: 5, KitchenID: 11}, time.Hour, testNow)
	require.NoError(t, err)

	a := NewJWTAuthenticator(testSecret, "", fixedNow)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	id, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.EqualValues(t, 5, id.UserID)
	assert.EqualValues(t, 11, id.KitchenID)
}

func TestAuthenticate_Rejects(t *testing.T) {
	valid := func(identity Identity) string {
		token, err := IssueToken(testSecret, "kitchenhub", identity, time.Hour, testNow)
		require.NoError(t, err)
		return token
	}

	expired, err := IssueToken(testSecret, "kitchenhub", Identity{UserID: 1, KitchenID: 10}, time.Hour, testNow.Add(-2*time.Hour))
	require.NoError(t, err)

	wrongSecret, err := IssueToken("other", "kitchenhub", Identity{UserID: 1, KitchenID: 10}, time.Hour, testNow)
	require.NoError(t, err)

	wrongIssuer, err := IssueToken(testSecret, "elsewhere", Identity{UserID: 1, KitchenID: 10}, time.Hour, testNow)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, KitchenID: 10}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"alg none", none},
		{"no kitchen", valid(Identity{UserID: 1})},
		{"no user", valid(Identity{KitchenID: 10})},
	}

	a := NewJWTAuthenticator(testSecret, "kitchenhub", fixedNow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.token != "" {
				q := r.URL.Query()
				q.Set("token", tt.token)
				r.URL.RawQuery = q.Encode()
			}

			_, err := a.Authenticate(r)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeUnauthorized, errors.TypeOf(err))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=Bearer%20abc", nil)
	assert.Equal(t, "abc", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, TokenFromRequest(r))
}
