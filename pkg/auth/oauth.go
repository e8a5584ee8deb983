// Package auth runs the OAuth desktop flow for Google Calendar and Google
// Tasks and hands out authenticated HTTP clients.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

const (
	// ClientSecretsFile is the downloaded Google API credentials file,
	// expected in the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile holds the user's access and refresh token.
	TokenFile = "token.json"

	// LocalhostAuthPort is the port the local redirect listener binds.
	LocalhostAuthPort = "6789"
)

var (
	// ErrNoCredentials means credentials.json is missing.
	ErrNoCredentials = errors.New("no OAuth client credentials found")
	// ErrNoToken means no token was stored and the flow may not run
	// interactively.
	ErrNoToken = errors.New("no OAuth token stored")
)

// Scopes needed to read tasks, write their notes, and manage events.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
	tasks.TasksScope,
}

// GetConfig creates an oauth2.Config from the client secrets file in dir.
func GetConfig(dir string, scopes []string, log zerolog.Logger) (*oauth2.Config, error) {
	clientSecretsFile := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.ConfigError("auth.config", fmt.Sprintf("place your Google OAuth client file at %s", clientSecretsFile), ErrNoCredentials)
		}
		return nil, syncerr.ConfigError("auth.config", "unable to read client secret file", err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, syncerr.ConfigError("auth.config", "unable to parse client secret file", err)
	}
	config.RedirectURL = fixRedirectURL(config.RedirectURL, log)
	return config, nil
}

// fixRedirectURL points localhost and out-of-band redirects at the local
// listener on LocalhostAuthPort.
func fixRedirectURL(redirect string, log zerolog.Logger) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" {
		fixed := fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		log.Info().Str("redirect_url", fixed).Msg("overriding out-of-band redirect URL")
		return fixed
	}
	parsed, err := url.Parse(redirect)
	if err != nil {
		log.Warn().Err(err).Str("redirect_url", redirect).Msg("could not parse redirect URL, using it as is")
		return redirect
	}
	if parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
		log.Warn().Str("redirect_url", redirect).Msg("redirect URL is neither localhost nor out-of-band")
		return redirect
	}
	if parsed.Port() != LocalhostAuthPort {
		if parsed.Port() != "" {
			log.Warn().Str("port", parsed.Port()).Msg("forcing localhost redirect onto the auth port")
		}
		parsed.Host = net.JoinHostPort(parsed.Hostname(), LocalhostAuthPort)
	}
	return parsed.String()
}

// NewHTTPClient returns an authenticated client that refreshes its token
// automatically. Without a stored token it runs the browser flow only
// when interactive is set.
func NewHTTPClient(ctx context.Context, dir string, interactive bool, log zerolog.Logger) (*http.Client, error) {
	config, err := GetConfig(dir, Scopes, log)
	if err != nil {
		return nil, err
	}

	tokenFile := filepath.Join(dir, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if !interactive {
			return nil, syncerr.ConfigError("auth.token", "not authenticated, run `taskcal auth`", ErrNoToken)
		}
		log.Info().Str("token_file", tokenFile).Msg("no token found, starting web authorization flow")
		tok, err = getTokenFromWeb(ctx, config, log)
		if err != nil {
			return nil, syncerr.ConfigError("auth.token", "authorization failed", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	src := &persistingSource{
		base: config.TokenSource(ctx, tok),
		path: tokenFile,
		last: tok,
		log:  log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Reauthorize removes any stored token and runs the browser flow.
func Reauthorize(ctx context.Context, dir string, log zerolog.Logger) error {
	tokenFile := filepath.Join(dir, TokenFile)
	if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete token file %s, delete it manually: %w", tokenFile, err)
	}
	_, err := NewHTTPClient(ctx, dir, true, log)
	return err
}

// persistingSource writes refreshed tokens back to disk.
type persistingSource struct {
	base oauth2.TokenSource
	path string
	last *oauth2.Token
	log  zerolog.Logger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.log.Warn().Err(err).Msg("could not persist refreshed token")
		} else {
			s.log.Debug().Msg("refreshed token saved")
		}
		s.last = tok
	}
	return tok, nil
}

// getTokenFromWeb runs the authorization code flow through a local
// redirect listener.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, log zerolog.Logger) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler:      callbackHandler(codeCh, errCh),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Please open the following URL in your browser to authorize taskcal:\n%s\n", authURL)
	log.Info().Str("redirect_url", config.RedirectURL).Msg("waiting for authorization code")

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timed out, please try again")
	}
}

func callbackHandler(codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Authorization code not found", http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("authorization code not found in redirect URL"):
			default:
			}
			return
		}
		fmt.Fprint(w, "Authentication successful! You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
