package ads

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TrackTokenExpiry bounds how long a served ad's tracking token stays
// valid. It covers the click window with room to spare.
const TrackTokenExpiry = 8 * 24 * time.Hour

// ErrInvalidTrackToken is returned when a tracking token fails verification.
var ErrInvalidTrackToken = errors.New("invalid track token")

// TrackClaims bind a tracking token to the impression it was issued for, so
// a caller cannot report events against impressions it never saw.
type TrackClaims struct {
	ImpressionID string `json:"imp"`
	CampaignID   string `json:"cmp"`
	SessionID    string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies impression tracking tokens.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a signer with the given HMAC secret.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Sign issues a tracking token for a served impression.
func (s *TokenSigner) Sign(impressionID, campaignID, sessionID string, now time.Time) (string, error) {
	claims := &TrackClaims{
		ImpressionID: impressionID,
		CampaignID:   campaignID,
		SessionID:    sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   impressionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TrackTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign track token: %w", err)
	}
	return signed, nil
}

// Verify checks a tracking token and returns its claims.
func (s *TokenSigner) Verify(tokenString string) (*TrackClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TrackClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidTrackToken
	}
	claims, ok := token.Claims.(*TrackClaims)
	if !ok {
		return nil, ErrInvalidTrackToken
	}
	return claims, nil
}
