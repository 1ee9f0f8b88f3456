// Package session tracks the signed-in user and their bearer token as one
// unit: both are set together after an auth exchange and cleared together on
// logout, in memory and in the state store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greenmart/storefront/internal/api"
	"github.com/greenmart/storefront/internal/storage"
	"github.com/greenmart/storefront/pkg/logger"
)

// credentialExchanger is the slice of the backend client the session store
// needs: trading credentials for a token and user record.
type credentialExchanger interface {
	Login(ctx context.Context, creds api.Credentials) (*api.AuthResponse, error)
	Signup(ctx context.Context, params api.SignupParams) (*api.AuthResponse, error)
}

type Store struct {
	mu    sync.Mutex
	user  *api.User
	token string
	ready bool

	kv       storage.KV
	exchange credentialExchanger
	logg     *logger.Logger
}

func NewStore(kv storage.KV, exchange credentialExchanger, logg *logger.Logger) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("session storage is required")
	}
	if exchange == nil {
		return nil, fmt.Errorf("session backend client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("session logger is required")
	}
	return &Store{kv: kv, exchange: exchange, logg: logg}, nil
}

// Load rehydrates the session from its slots. The token and user record are
// only honored as a pair; a half-present or corrupt pair is discarded.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	s.ready = true

	token, tokenErr := s.kv.Get(ctx, storage.SlotToken)
	rawUser, userErr := s.kv.Get(ctx, storage.SlotUser)
	if tokenErr != nil || userErr != nil || token == "" {
		if (tokenErr == nil) != (userErr == nil) {
			s.logg.Warn(s.logg.WithOperation(ctx, "session_load"), "half-persisted session discarded")
			s.clearSlotsLocked(ctx)
		}
		return
	}

	var user api.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "session_load"), "user record corrupt, session discarded")
		s.clearSlotsLocked(ctx)
		return
	}

	s.token = token
	s.user = &user
}

// Login exchanges credentials and, on success, replaces the active session.
// The backend's rejection comes through unchanged.
func (s *Store) Login(ctx context.Context, creds api.Credentials) (*api.User, error) {
	resp, err := s.exchange.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, resp), nil
}

// Signup registers an account and signs in as it in one step.
func (s *Store) Signup(ctx context.Context, params api.SignupParams) (*api.User, error) {
	resp, err := s.exchange.Signup(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, resp), nil
}

func (s *Store) establish(ctx context.Context, resp *api.AuthResponse) *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.token = resp.AccessToken
	user := resp.User
	s.user = &user

	if err := s.kv.Set(ctx, storage.SlotToken, resp.AccessToken); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "session_persist"), "persisting token failed, session is memory-only")
	} else if payload, err := json.Marshal(resp.User); err == nil {
		if err := s.kv.Set(ctx, storage.SlotUser, string(payload)); err != nil {
			s.logg.Warn(s.logg.WithOperation(ctx, "session_persist"), "persisting user record failed")
		}
	}
	return s.user
}

// Logout clears the session in memory and storage. It never fails: a slot
// that cannot be removed is logged and abandoned.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.clearSlotsLocked(ctx)
}

func (s *Store) clearSlotsLocked(ctx context.Context) {
	if err := s.kv.Remove(ctx, storage.SlotToken); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "session_clear"), "removing token slot failed")
	}
	if err := s.kv.Remove(ctx, storage.SlotUser); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "session_clear"), "removing user slot failed")
	}
}

// User returns a copy of the signed-in user, or nil when signed out.
func (s *Store) User() *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Initializing reports whether the session has yet to rehydrate. Until Load
// runs, a nil user only means "unknown", not "guest".
func (s *Store) Initializing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ready
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// Authenticate attaches the session's bearer token to an outbound request.
// Signed out, it leaves the request untouched.
func (s *Store) Authenticate(req *http.Request) {
	if token := s.currentToken(req.Context()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// currentToken prefers the in-memory token. Before rehydration it falls back
// to the persisted slot, so requests fired ahead of Load still authenticate.
func (s *Store) currentToken(ctx context.Context) string {
	s.mu.Lock()
	token, ready := s.token, s.ready
	s.mu.Unlock()
	if token != "" || ready {
		return token
	}

	persisted, err := s.kv.Get(ctx, storage.SlotToken)
	if err != nil {
		return ""
	}
	return persisted
}

// Transport wraps a RoundTripper so every request it sends carries the
// session's current token. Pass nil to wrap the default transport.
func (s *Store) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{session: s, base: base}
}

type authTransport struct {
	session *Store
	base    http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	t.session.Authenticate(clone)
	return t.base.RoundTrip(clone)
}

var errNoExpiry = errors.New("session: token carries no expiry")

// TokenExpiry reads the exp claim of the session token without verifying the
// signature; only the backend can verify, this is for display and refresh
// heuristics.
func (s *Store) TokenExpiry() (time.Time, error) {
	token := s.Token()
	if token == "" {
		return time.Time{}, errNoExpiry
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errNoExpiry
	}
	return exp.Time, nil
}
