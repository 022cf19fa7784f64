package client

import (
	"context"
	"sync"
	"time"
)

// State is the authentication state of the session manager.
type State string

const (
	// StateUnknown holds from construction until hydration completes.
	StateUnknown       State = "unknown"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// SessionManager owns the authentication lifecycle: hydrate at start, login,
// register with auto-login, and logout. Transitions are serialized, so
// concurrent callers cannot interleave partial state.
type SessionManager struct {
	api   *Client
	creds *CredentialStore

	// mu serializes transitions; stateMu guards reads of the fields below.
	mu      sync.Mutex
	stateMu sync.RWMutex
	state   State
	session *Session
	loading bool
}

func NewSessionManager(api *Client, creds *CredentialStore) *SessionManager {
	return &SessionManager{
		api:   api,
		creds: creds,
		state: StateUnknown,
	}
}

type userPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *userPayload `json:"user"`
}

type profileResponse struct {
	Data userPayload `json:"data"`
}

// Hydrate reconstructs the session from durable storage, revalidating the
// persisted token against the server. It runs once; later calls return the
// settled state. Any failure (missing records, network, rejection) resolves
// to Anonymous with the persisted records cleared, so a stale or revoked
// token never survives a restart.
func (m *SessionManager) Hydrate(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateUnknown {
		return m.State()
	}

	m.setLoading(true)
	defer m.setLoading(false)

	persisted := m.creds.Load()
	if persisted == nil {
		// Partial leftovers (token without profile, or vice versa) count
		// as absent; drop them.
		m.creds.Clear()
		m.set(StateAnonymous, nil)
		return StateAnonymous
	}

	prof, err := m.fetchProfile(ctx)
	if err != nil {
		m.creds.Clear()
		m.set(StateAnonymous, nil)
		return StateAnonymous
	}

	sess := Session{
		UserID:    prof.ID,
		Name:      prof.Name,
		Email:     prof.Email,
		Token:     persisted.Token,
		ExpiresAt: persisted.ExpiresAt,
	}
	m.creds.Save(sess)
	m.set(StateAuthenticated, &sess)
	return StateAuthenticated
}

// Login exchanges credentials for a session. On failure any partial state is
// cleared, the manager stays Anonymous, and the error is surfaced for display.
func (m *SessionManager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx, email, password)
}

func (m *SessionManager) login(ctx context.Context, email, password string) error {
	m.setLoading(true)
	defer m.setLoading(false)

	var resp loginResponse
	err := m.api.PostJSON(ctx, "/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		m.abandon()
		// A 401 from /login means the credentials themselves were wrong.
		var ce *Error
		if isKindErr(err, KindUnauthorized, &ce) {
			return &Error{Kind: KindInvalidCredentials, Status: ce.Status, Message: ce.Message}
		}
		return err
	}
	if resp.Token == "" {
		m.abandon()
		return &Error{Kind: KindServer, Message: "no token returned from server"}
	}

	sess := Session{
		Token:     resp.Token,
		ExpiresAt: time.Now().UTC().Add(sessionTTL),
	}

	if resp.User != nil {
		sess.UserID = resp.User.ID
		sess.Name = resp.User.Name
		sess.Email = resp.User.Email
	} else {
		// Older backends return only the token. Persist it so the profile
		// fetch authenticates, then complete or abandon the partial state.
		if err := m.creds.SaveToken(resp.Token); err != nil {
			m.abandon()
			return &Error{Kind: KindServer, Message: err.Error()}
		}
		prof, err := m.fetchProfile(ctx)
		if err != nil {
			m.abandon()
			return err
		}
		sess.UserID = prof.ID
		sess.Name = prof.Name
		sess.Email = prof.Email
	}

	if err := m.creds.Save(sess); err != nil {
		m.abandon()
		return &Error{Kind: KindServer, Message: err.Error()}
	}
	m.set(StateAuthenticated, &sess)
	return nil
}

// Register creates an account and, on acceptance, immediately logs in with
// the same credentials: registration itself does not return a usable session.
func (m *SessionManager) Register(ctx context.Context, name, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLoading(true)
	defer m.setLoading(false)

	err := m.api.PostJSON(ctx, "/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return err
	}

	return m.login(ctx, email, password)
}

// Logout always succeeds from the caller's perspective: the server-side
// revocation is best-effort and its failure is swallowed, but local state is
// cleared unconditionally. Logging out while Anonymous is a no-op.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLoading(true)
	defer m.setLoading(false)

	if m.Current().Authenticated() {
		m.api.Post(ctx, "/logout", nil)
	}

	err := m.creds.Clear()
	m.set(StateAnonymous, nil)
	return err
}

func (m *SessionManager) fetchProfile(ctx context.Context) (*userPayload, error) {
	var resp profileResponse
	if err := m.api.Get(ctx, "/profile", &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Expire drops a session the server no longer honors. Called when an
// authenticated request comes back 401, meaning the token was revoked or
// timed out server-side.
func (m *SessionManager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.Clear()
	m.set(StateAnonymous, nil)
}

// abandon drops partial state after a failed transition.
func (m *SessionManager) abandon() {
	m.creds.Clear()
	m.set(StateAnonymous, nil)
}

func (m *SessionManager) set(state State, sess *Session) {
	m.stateMu.Lock()
	m.state = state
	m.session = sess
	m.stateMu.Unlock()
}

func (m *SessionManager) setLoading(v bool) {
	m.stateMu.Lock()
	m.loading = v
	m.stateMu.Unlock()
}

// State returns the current authentication state.
func (m *SessionManager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Loading reports whether a transition is in flight.
func (m *SessionManager) Loading() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.loading
}

// Current returns a copy of the held session, or nil when not authenticated.
func (m *SessionManager) Current() *Session {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.session == nil {
		return nil
	}
	sess := *m.session
	return &sess
}

func (m *SessionManager) IsAuthenticated() bool {
	return m.Current().Authenticated()
}

func isKindErr(err error, kind ErrorKind, out **Error) bool {
	ce, ok := err.(*Error)
	if !ok || ce.Kind != kind {
		return false
	}
	*out = ce
	return true
}
