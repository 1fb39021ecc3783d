package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "naejango"

// Claims is the payload inside every access token.
//
// Signup and login issue a token carrying these fields. On every later request
// the middleware reads them back, which is how a handler knows WHO is calling
// without a database round trip.
//
// Why embed jwt.RegisteredClaims?
//   - It brings the standard fields: ExpiresAt, IssuedAt, Issuer, Subject.
//   - The parser checks expiry and issuer against them for us.
//   - UserID and Email sit on top as our own fields.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken signs an access token for userID that expires after ttl.
//
// Parameters:
//   - userID, email: who the token represents.
//   - secret: the HMAC key (config.JWTSecret).
//   - ttl: lifetime, e.g. 24 * time.Hour.
//
// Why HS256?
//   - One shared secret, no key pair to distribute.
//   - Only this service issues and verifies tokens. A second service that must
//     verify without issuing would be the point to move to RS256.
func GenerateToken(userID uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates tokenString and returns its claims.
//
// It verifies:
//  1. The signature matches secret (the token was not tampered with).
//  2. The token has not expired.
//  3. The issuer is "naejango".
//  4. The signing method is HMAC, so a token signed with "none" or with an RSA
//     public key used as an HMAC secret is refused.
//  5. The token names a user.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// Only HMAC; rejects "none" and RSA/HMAC confusion.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user")
	}

	return claims, nil
}
