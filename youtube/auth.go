package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// oauthConfig builds the OAuth2 config from a downloaded credentials file.
func oauthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("youtube: read credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("youtube: parse credentials file: %w", err)
	}
	return cfg, nil
}

// TokenSource loads the saved token and returns a self-refreshing source.
// Run Authorize first if the token file does not exist yet.
func TokenSource(ctx context.Context, credentialsFile, tokenFile string) (oauth2.TokenSource, error) {
	cfg, err := oauthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}

	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("youtube: no saved token, run the auth command first: %w", err)
	}

	// Persist refreshed tokens so the next run skips the refresh round trip.
	return &savingTokenSource{
		src:  cfg.TokenSource(ctx, tok),
		path: tokenFile,
		last: tok,
	}, nil
}

// Authorize runs the interactive OAuth flow: prints the consent URL, reads
// the verification code from in, and saves the token.
func Authorize(ctx context.Context, credentialsFile, tokenFile string, in *os.File) error {
	cfg, err := oauthConfig(credentialsFile)
	if err != nil {
		return err
	}

	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following URL in your browser and authorize the app:\n\n%s\n\nEnter the code: ", url)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("youtube: read authorization code: %w", err)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("youtube: exchange authorization code: %w", err)
	}

	if err := saveToken(tokenFile, tok); err != nil {
		return err
	}
	fmt.Printf("Token saved to %s\n", tokenFile)
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("youtube: create token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("youtube: write token file: %w", err)
	}
	return nil
}

// savingTokenSource writes the token back to disk whenever it changes.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		s.last = tok
		if err := saveToken(s.path, tok); err != nil {
			// Token still usable this run, just not persisted.
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
	return tok, nil
}
