// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	keyMu      sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenExpire is how long issued tokens live; zero means no exp claim.
	tokenExpire time.Duration
)

// ErrNoToken means the request carried no bearer token or auth cookie.
var ErrNoToken = errors.New("missing token")

// CookieName is the cookie a browser client may carry its token in.
const CookieName = "auth_token"

// Init generates a fresh ed25519 key pair at runtime and sets the token lifetime.
func Init(expire time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	setKeys(priv, pub, expire)
	return nil
}

// InitFromPath reads ed25519 private/public keys from file and sets the token lifetime.
func InitFromPath(privatePath, publicPath string, expire time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return errors.New("key files are not raw ed25519 keys")
	}
	setKeys(ed25519.PrivateKey(privateKeyData), ed25519.PublicKey(publicKeyData), expire)
	return nil
}

func setKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, expire time.Duration) {
	keyMu.Lock()
	defer keyMu.Unlock()
	privateKey, publicKey, tokenExpire = priv, pub, expire
}

// CreateJWT creates a signed JWT token with "sub" = userID and an exp claim unless tokens
// never expire.
func CreateJWT(userID uuid.UUID) (string, error) {
	keyMu.RLock()
	defer keyMu.RUnlock()
	if privateKey == nil {
		return "", errors.New("auth keys not initialized")
	}
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
	}
	if tokenExpire > 0 {
		claims["exp"] = time.Now().Add(tokenExpire).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns the user id in its "sub" claim.
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	keyMu.RLock()
	pub := publicKey
	keyMu.RUnlock()

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("missing sub in jwt")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("sub is not a user id: %w", err)
	}
	return id, nil
}

// FromRequest authenticates the bearer token, or the auth cookie when there is none.
func FromRequest(r *http.Request) (uuid.UUID, error) {
	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	} else if c, err := r.Cookie(CookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		return uuid.Nil, ErrNoToken
	}
	return AuthenticateJWT(token)
}
