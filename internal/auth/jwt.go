// Package auth verifies access tokens issued by the user service.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/middleware"
)

// Issuer is the iss claim written by the user service.
const Issuer = "user-service"

// RoleAdmin may manage coupons and automatic discounts.
const RoleAdmin = "admin"

// accessClaims mirrors the user service's access token payload.
type accessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens against a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Validate implements middleware.TokenValidator.
func (v *Verifier) Validate(tokenString string) (*middleware.Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &accessClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid access token claims")
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return &middleware.Claims{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}
