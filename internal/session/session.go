// Package session owns the authentication token and current principal.
// One Store instance lives for the duration of the client process and is
// handed to the guard and the lifecycle engine explicitly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cleanline/internal/api"
	"cleanline/internal/domain"
	"cleanline/internal/store"
)

// Store holds the session pair. Invariant: after any completed operation
// the token and principal are either both present or both absent.
type Store struct {
	api *api.Client
	db  store.Store

	mu      sync.Mutex
	token   string
	user    *domain.User
	loading bool
}

// New wires a session store to the remote boundary and durable storage.
// It registers itself for authentication-rejection teardown: any 401 from
// any operation clears the session.
func New(client *api.Client, db store.Store) *Store {
	s := &Store{api: client, db: db}
	client.OnAuthenticationRejected = s.Logout
	return s
}

// Login authenticates and installs token plus principal atomically, in
// memory and in durable storage. On failure the prior session state is
// left untouched.
func (s *Store) Login(ctx context.Context, creds api.Credentials) (domain.User, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		return domain.User{}, err
	}
	if resp.AccessToken == "" {
		return domain.User{}, fmt.Errorf("login response missing access token")
	}
	if err := s.db.WriteSession(ctx, resp.AccessToken, resp.User); err != nil {
		return domain.User{}, fmt.Errorf("persist session: %w", err)
	}
	s.install(resp.AccessToken, resp.User)
	return resp.User, nil
}

// Register creates an account. Pure glue; no session state changes.
func (s *Store) Register(ctx context.Context, data api.RegisterData) (domain.User, error) {
	s.setLoading(true)
	defer s.setLoading(false)
	return s.api.Register(ctx, data)
}

// Logout clears the token, principal and durable storage. Always succeeds
// and is safe to call when already logged out.
func (s *Store) Logout() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	s.api.SetToken("")
	// Best effort; an unreachable disk must not keep a session alive.
	_ = s.db.ClearSession(context.Background())
}

// RestoreFromStorage loads a persisted session into memory. An absent
// session is a no-op; a present but malformed one is torn down to keep
// the token/principal invariant.
func (s *Store) RestoreFromStorage() error {
	token, user, err := s.db.ReadSession(context.Background())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		s.Logout()
		return err
	}
	s.install(token, user)
	return nil
}

// EnsureLoaded triggers RestoreFromStorage when a token was persisted but
// no principal is in memory yet. The guard calls this before deciding.
func (s *Store) EnsureLoaded() {
	s.mu.Lock()
	loaded := s.user != nil
	s.mu.Unlock()
	if loaded {
		return
	}
	_ = s.RestoreFromStorage()
}

// RefreshPrincipal re-fetches the principal for the current token. Any
// failure is treated as a revoked session: fail closed, log out.
func (s *Store) RefreshPrincipal(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		s.Logout()
		return fmt.Errorf("no session to refresh")
	}
	user, err := s.api.Profile(ctx)
	if err != nil {
		s.Logout()
		return err
	}
	if err := s.db.WriteSession(ctx, token, user); err != nil {
		s.Logout()
		return fmt.Errorf("persist refreshed principal: %w", err)
	}
	s.install(token, user)
	return nil
}

func (s *Store) install(token string, user domain.User) {
	s.mu.Lock()
	s.token = token
	u := user
	s.user = &u
	s.mu.Unlock()
	s.api.SetToken(token)
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// IsLoading reports whether a session operation is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsAuthenticated reports whether both token and principal are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// Principal returns a copy of the current principal, or nil.
func (s *Store) Principal() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the current token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsAdmin reports whether the principal is admin or super_admin.
func (s *Store) IsAdmin() bool {
	p := s.Principal()
	return p != nil && p.Role.IsAdminClass()
}

// IsSuperAdmin reports whether the principal is super_admin.
func (s *Store) IsSuperAdmin() bool {
	p := s.Principal()
	return p != nil && p.Role == domain.RoleSuperAdmin
}

// IsCleaner reports whether the principal is a cleaner.
func (s *Store) IsCleaner() bool {
	p := s.Principal()
	return p != nil && p.Role == domain.RoleCleaner
}
