package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"shiftsync/internal/config"
	appLog "shiftsync/internal/log"
)

// authTimeout bounds how long the browser consent flow may take.
const authTimeout = 5 * time.Minute

// authorize returns an HTTP client carrying OAuth2 credentials.
//
//   - credentials.json holds the installed-app client secret.
//   - token.json caches the user token; it is created on first use and
//     rewritten whenever the token is refreshed.
//   - Without a usable token the consent flow is run once through a
//     loopback redirect on 127.0.0.1.
func authorize(ctx context.Context, opts Options) (*http.Client, error) {
	secret, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("gcal: reading client credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(secret, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: parsing client credentials: %w", err)
	}

	tok, err := loadToken(opts.TokenFile)
	if err != nil || (!tok.Valid() && tok.RefreshToken == "") {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			appLog.Warn("cached token unusable; starting login flow", "err", err)
		}
		tok, err = loginFlow(ctx, conf, opts)
		if err != nil {
			return nil, err
		}
		if err := saveToken(opts.TokenFile, tok); err != nil {
			return nil, err
		}
	}

	ts := &persistingSource{
		base: conf.TokenSource(ctx, tok),
		path: opts.TokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, ts), nil
}

// loginFlow runs the authorization-code flow with a one-shot local
// redirect listener.
func loginFlow(ctx context.Context, conf *oauth2.Config, opts Options) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("gcal: starting redirect listener: %w", err)
	}
	conf.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state || q.Get("code") == "" {
				http.Error(w, "invalid authorization response", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authorization received. You can close this window.")
			select {
			case codeCh <- q.Get("code"):
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(opts.Out, "Open this URL to authorize calendar access:\n\n%s\n\n", conf.AuthCodeURL(state, oauth2.AccessTypeOffline))
	appLog.Info("initiating google login flow", "redirect", conf.RedirectURL)

	wait, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	select {
	case code := <-codeCh:
		tok, err := conf.Exchange(wait, code)
		if err != nil {
			return nil, fmt.Errorf("gcal: exchanging authorization code: %w", err)
		}
		return tok, nil
	case <-wait.Done():
		return nil, fmt.Errorf("gcal: waiting for authorization: %w", wait.Err())
	}
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("gcal: decoding token: %w", err)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("gcal: saving token: %w", err)
	}
	return nil
}

// persistingSource writes refreshed tokens back to disk.
type persistingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		appLog.Info("refreshed google token")
		if err := saveToken(s.path, tok); err != nil {
			appLog.Error("token save failed", err)
		}
	}
	return tok, nil
}
