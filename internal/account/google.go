package account

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the verified content of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleVerifier checks a Google ID token sent by a client.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleIdentity, error)
}

// IDTokenVerifier validates tokens against Google's published keys for one
// OAuth client id.
type IDTokenVerifier struct {
	validator *idtoken.Validator
	audience  string
}

// NewIDTokenVerifier builds a verifier for the given OAuth client id.
func NewIDTokenVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("google id token validator: %w", err)
	}
	return &IDTokenVerifier{validator: v, audience: clientID}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, idToken string) (GoogleIdentity, error) {
	payload, err := v.validator.Validate(ctx, idToken, v.audience)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("invalid google token: %w", err)
	}
	id := GoogleIdentity{Subject: payload.Subject}
	id.Email, _ = payload.Claims["email"].(string)
	id.Name, _ = payload.Claims["name"].(string)
	id.Picture, _ = payload.Claims["picture"].(string)
	id.EmailVerified, _ = payload.Claims["email_verified"].(bool)
	return id, nil
}
