package service

import (
	"context"
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleIdentity is the subset of ID token claims used to sign in.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleTokenVerifier checks a Google ID token and returns its identity.
type GoogleTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

type googleVerifier struct {
	clientID string
	verifier googleAuthIDTokenVerifier.Verifier
}

// NewGoogleVerifier returns a verifier bound to the OAuth client id, or nil
// when Google sign-in is not configured.
func NewGoogleVerifier(clientID string) GoogleTokenVerifier {
	if clientID == "" {
		return nil
	}
	return &googleVerifier{clientID: clientID}
}

func (g *googleVerifier) Verify(_ context.Context, idToken string) (*GoogleIdentity, error) {
	if err := g.verifier.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return nil, fmt.Errorf("verify google id token: %w", err)
	}
	claims, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, fmt.Errorf("decode google id token: %w", err)
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, fmt.Errorf("google id token lacks subject or email")
	}
	return &GoogleIdentity{Subject: claims.Sub, Email: claims.Email, Name: claims.Name}, nil
}
