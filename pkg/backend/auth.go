package backend

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// TokenSource builds the token source for a. It returns nil when requests
// go out unauthenticated.
func TokenSource(ctx context.Context, a AuthConfig) (oauth2.TokenSource, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	switch a.Mode {
	case AuthBearer:
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.Token, TokenType: "Bearer"}), nil
	case AuthClientCredentials:
		cc := &clientcredentials.Config{
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			TokenURL:     a.TokenURL,
			Scopes:       a.Scopes,
		}
		return cc.TokenSource(ctx), nil
	case AuthGoogleIDToken:
		var opts []option.ClientOption
		if a.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(a.CredentialsFile))
		}
		return idtoken.NewTokenSource(ctx, a.Audience, opts...)
	default:
		return nil, nil
	}
}

// authorize wraps rt so every request carries a token from ts.
func authorize(ts oauth2.TokenSource) func(http.RoundTripper) http.RoundTripper {
	if ts == nil {
		return nil
	}
	return func(base http.RoundTripper) http.RoundTripper {
		return &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, ts), Base: base}
	}
}
