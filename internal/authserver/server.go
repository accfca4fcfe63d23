// Package authserver is the web service side of the calendar connect flow:
// it turns Google authorization codes into stored credential records and
// serves them back to the bot over an internal authenticated endpoint.
package authserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/example/contest-reminder-bot/internal/config"
	"github.com/example/contest-reminder-bot/internal/model"
	"github.com/example/contest-reminder-bot/internal/repository"
)

// Server holds the handlers of the auth web service.
type Server struct {
	apiKey  string
	creds   repository.CredentialStore
	pending repository.PendingAuthStore
	oauth   *oauth2.Config

	// exchange is swapped out in tests; the default goes to Google
	exchange func(ctx context.Context, code string) (*oauth2.Token, error)
}

func New(cfg *config.Config, store repository.Store) *Server {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes: []string{
			calendar.CalendarEventsScope,
			calendar.CalendarReadonlyScope,
		},
		Endpoint: google.Endpoint,
	}
	return &Server{
		apiKey:   cfg.InternalAPIKey,
		creds:    store,
		pending:  store,
		oauth:    oauthCfg,
		exchange: func(ctx context.Context, code string) (*oauth2.Token, error) {
			return oauthCfg.Exchange(ctx, code)
		},
	}
}

// Handler returns the service's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /connect", s.handleConnect)
	mux.HandleFunc("GET /oauth2callback", s.handleCallback)
	mux.HandleFunc("GET /get-user-token", s.handleUserToken)
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Println("auth server listening on", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Server is running."})
}

// handleConnect is the link target sent to the user by /connectauth. It
// (re)stores the correlation entry and forwards the browser to Google's
// consent screen with the token riding along as the OAuth state parameter.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userIDStr := r.URL.Query().Get("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if token == "" || err != nil {
		http.Error(w, "missing or invalid token/user_id", http.StatusBadRequest)
		return
	}

	if err := s.pending.PutPendingAuth(r.Context(), token, userID); err != nil {
		log.Println("connect: store pending auth:", err)
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
		return
	}

	authURL := s.oauth.AuthCodeURL(token,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the flow: claim the correlation entry (single
// use), exchange the code, persist the credential record.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	userID, err := s.pending.ClaimPendingAuth(r.Context(), state)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Println("callback: claim pending auth:", err)
		}
		renderPage(w, http.StatusBadRequest, "Error: invalid or expired token.",
			"Start over with /connectauth in Telegram.")
		return
	}

	token, err := s.exchange(r.Context(), code)
	if err != nil {
		log.Printf("callback: exchange code for user %d: %v", userID, err)
		renderPage(w, http.StatusBadGateway, "Error: failed to fetch token from Google.",
			"Start over with /connectauth in Telegram.")
		return
	}

	cred := &model.Credential{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     s.oauth.Endpoint.TokenURL,
		ClientID:     s.oauth.ClientID,
		ClientSecret: s.oauth.ClientSecret,
		Scopes:       s.oauth.Scopes,
	}
	if err := s.creds.SaveCredential(r.Context(), userID, cred); err != nil {
		log.Printf("callback: save credential for user %d: %v", userID, err)
		renderPage(w, http.StatusInternalServerError, "Error: could not store your credentials.",
			"Start over with /connectauth in Telegram.")
		return
	}

	log.Println("callback: credential saved for user", userID)
	renderPage(w, http.StatusOK, "✅ Google Calendar connected successfully!",
		"You can close this tab and return to Telegram now.")
}

// handleUserToken serves stored credentials to the bot. The key check comes
// first so an attacker without the key learns nothing about which user ids
// exist.
func (s *Server) handleUserToken(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-KEY") != s.apiKey {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid user_id", http.StatusBadRequest)
		return
	}

	cred, err := s.creds.Credential(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "token not found", http.StatusNotFound)
			return
		}
		log.Printf("get-user-token: load credential for user %d: %v", userID, err)
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cred)
}

func renderPage(w http.ResponseWriter, status int, heading, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><body><h2>%s</h2><p>%s</p></body></html>", heading, detail)
}
