package fetch

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/eodatalab/stacfetch/internal/config"
)

// Token performs the OAuth2 client-credentials exchange and returns a
// bearer token. One token is obtained up front per pipeline run; lifetime
// and refresh are out of scope here.
func Token(ctx context.Context, auth config.OAuth) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		TokenURL:     auth.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	token, err := cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	return token.AccessToken, nil
}
