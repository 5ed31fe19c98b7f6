package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
)

// Verifier resolves a bearer token to the acting user's uid.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims carries the uid either in a dedicated claim or as the subject.
type Claims struct {
	UID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// MinSecretLength is the shortest HS256 key accepted, matching the hash size.
const MinSecretLength = 32

var errWeakSecret = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)

func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, errWeakSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", unauthorized(err)
	}

	uid := strings.TrimSpace(claims.UID)
	if uid == "" {
		uid = strings.TrimSpace(claims.Subject)
	}
	if uid == "" {
		return "", unauthorized(errors.New("token carries no uid"))
	}
	return uid, nil
}

// Sign issues a token for uid; used by tooling and tests.
func (v *JWTVerifier) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func unauthorized(err error) error {
	return &apperrors.Exception{
		Kind:       apperrors.KindUnauthorized,
		Message:    "invalid or expired token",
		StatusCode: apperrors.ErrUnauthorized.StatusCode,
		Err:        err,
	}
}
