package auth

import (
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticate(t *testing.T) {
	require.NoError(t, Init(time.Hour))
	user := uuid.New()
	token, err := CreateJWT(user)
	require.NoError(t, err)

	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = AuthenticateJWT(token + "x")
	assert.Error(t, err)
}

func TestTokensFromAnotherKeyAreRejected(t *testing.T) {
	require.NoError(t, Init(0))
	token, err := CreateJWT(uuid.New())
	require.NoError(t, err)

	require.NoError(t, Init(0))
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	require.NoError(t, Init(-time.Minute))
	token, err := CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = AuthenticateJWT(token)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestRejectsOtherSigningMethods(t *testing.T) {
	require.NoError(t, Init(0))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestInitFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))

	require.NoError(t, InitFromPath(privPath, pubPath, 0))
	user := uuid.New()
	token, err := CreateJWT(user)
	require.NoError(t, err)
	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	assert.Error(t, InitFromPath(filepath.Join(dir, "nope"), pubPath, 0))
}

func TestFromRequest(t *testing.T) {
	require.NoError(t, Init(0))
	user := uuid.New()
	token, err := CreateJWT(user)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = FromRequest(r)
	assert.ErrorIs(t, err, ErrNoToken)

	r.Header.Set("Authorization", "Bearer "+token)
	got, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	got, err = FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}
