package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenTTL is the fixed lifetime of an execution token.
const TokenTTL = 3600 * time.Second

// Budget is the spend ceiling embedded in every execution token. It is
// never sent on its own.
type Budget struct {
	AIDollars    float64 `json:"aiDollars"`
	ComputeHours float64 `json:"computeHours"`
	Window       string  `json:"window"`
}

// DefaultBudget returns the baseline budget applied when the caller
// supplies no limits.
func DefaultBudget() Budget {
	return Budget{
		AIDollars:    10,
		ComputeHours: 1,
		Window:       "day",
	}
}

// Normalize fills unset budget fields from the baseline.
func (b Budget) Normalize() Budget {
	def := DefaultBudget()
	if b.AIDollars <= 0 {
		b.AIDollars = def.AIDollars
	}
	if b.ComputeHours <= 0 {
		b.ComputeHours = def.ComputeHours
	}
	if b.Window == "" {
		b.Window = def.Window
	}
	return b
}

// Claims is the payload signed into an execution token
type Claims struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Budget    Budget `json:"budget"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// TokenProvider mints short-lived, budget-scoped execution tokens signed
// with a project's HMAC key. Tokens are minted fresh per submission and
// never cached across jobs.
type TokenProvider struct {
	hmacKey []byte
	now     func() time.Time
}

// NewTokenProvider creates a provider for one project signing key
func NewTokenProvider(hmacKey string) *TokenProvider {
	return &TokenProvider{
		hmacKey: []byte(hmacKey),
		now:     time.Now,
	}
}

// Mint produces a signed token embedding the identity and budget. The
// expiry is fixed at TokenTTL from issuance.
func (tp *TokenProvider) Mint(userID, projectID string, budget Budget) (string, error) {
	if len(tp.hmacKey) == 0 {
		return "", fmt.Errorf("mint token: empty hmac key")
	}

	now := tp.now()
	claims := Claims{
		UserID:    userID,
		ProjectID: projectID,
		Budget:    budget.Normalize(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(TokenTTL).Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + tp.sign(encoded), nil
}

// Verify checks a token's signature and expiry and returns its claims.
// Used by tests and diagnostic tooling; the remote side performs the
// authoritative check.
func (tp *TokenProvider) Verify(token string) (*Claims, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}

	if !hmac.Equal([]byte(tp.sign(encoded)), []byte(sig)) {
		return nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}

	if tp.now().Unix() >= claims.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}

func (tp *TokenProvider) sign(payload string) string {
	mac := hmac.New(sha256.New, tp.hmacKey)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
