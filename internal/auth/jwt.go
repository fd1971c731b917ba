package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim so a refresh token cannot be used as
// an access token and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// Claims represents JWT payload. Email and Name let the API rebuild a missing
// profile from the session alone.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is what gets signed into a token pair.
type Identity struct {
	TeacherID string
	Email     string
	Name      string
}

// Signer issues and parses HS256 tokens.
type Signer struct {
	Issuer     string
	Key        []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

// NewSigner creates a signer with the given key and lifetimes.
func NewSigner(issuer, key string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{Issuer: issuer, Key: []byte(key), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

func (s *Signer) claims(id Identity, typ string, exp time.Time) Claims {
	return Claims{
		Email: id.Email,
		Name:  id.Name,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.Issuer,
			Subject:   id.TeacherID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
}

// Issue issues signed access and refresh tokens.
func (s *Signer) Issue(id Identity) (TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, s.claims(id, TypeAccess, accessExp)).SignedString(s.Key)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, s.claims(id, TypeRefresh, refreshExp)).SignedString(s.Key)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token of the wanted type and returns its claims.
func (s *Signer) Parse(tokenStr, wantType string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now)}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.Key, nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if claims.Type != wantType {
		return Claims{}, ErrWrongTokenType
	}
	return *claims, nil
}
