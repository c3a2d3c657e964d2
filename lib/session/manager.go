package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/rpc/client"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

// ErrNoSession is returned by Login if the prompt ended without a session
var ErrNoSession = errors.New("no session established")

const (
	DefaultTokenKey = "sessionId"
	DefaultTimeout  = 5 * time.Second
)

// Session is the data of a SetSession reply and of a Session push
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ExpiresDate *time.Time `json:"expiresDate"`
}

// LoginPrompt presents the login to the user. Prompt gets the one-time
// client token and returns when the user is done. ctx is canceled as soon
// as the session arrived.
type LoginPrompt interface {
	Prompt(ctx context.Context, clientToken string) error
}

// LoginPromptFunc adapts a function to LoginPrompt
type LoginPromptFunc func(ctx context.Context, clientToken string) error

func (f LoginPromptFunc) Prompt(ctx context.Context, clientToken string) error {
	return f(ctx, clientToken)
}

// Options configure a Manager
type Options struct {
	// TokenKey is the TokenStore key of the session token (default "sessionId")
	TokenKey string
	// Timeout bounds every request of the manager (default 5s)
	Timeout time.Duration
}

// Manager establishes the session on every (re)connect of the client and
// keeps the authentication state, user and roles as replay-last signals.
type Manager struct {
	client *client.RPCClient
	store  TokenStore
	opts   Options

	auth  *broadcast.Value[bool]
	user  *broadcast.Value[json.RawMessage]
	roles *broadcast.Value[*Roles]

	ready     chan struct{}
	readyOnce sync.Once

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager creates a manager for c. The session is set on every
// transition of the transport to Connected, including the current one.
func NewManager(c *client.RPCClient, store TokenStore, opts Options) *Manager {
	if opts.TokenKey == "" {
		opts.TokenKey = DefaultTokenKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client: c,
		store:  store,
		opts:   opts,
		auth:   broadcast.NewValue(false),
		user:   broadcast.NewValue[json.RawMessage](nil),
		roles:  broadcast.NewValue[*Roles](nil),
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	states := c.Transport().SubscribeState()
	auth := m.auth.Subscribe()
	m.wg.Add(2)
	go m.watchConnection(states)
	go m.watchAuth(auth)
	return m
}

// Auth is true while the client is authenticated
func (m *Manager) Auth() *broadcast.Value[bool] {
	return m.auth
}

// User is the profile of the authenticated user (nil if unauthenticated)
func (m *Manager) User() *broadcast.Value[json.RawMessage] {
	return m.user
}

// Roles are the roles of the authenticated user (nil if unauthenticated)
func (m *Manager) Roles() *broadcast.Value[*Roles] {
	return m.roles
}

// WhenAuthReady is closed after the first SetSession completed
func (m *Manager) WhenAuthReady() <-chan struct{} {
	return m.ready
}

// SetSession sends the persisted session token to the peer. Without a
// token nothing is sent. A reply that is null, false or empty means the
// token is not (or no longer) valid.
func (m *Manager) SetSession(ctx context.Context) (*Session, error) {
	defer m.markReady()

	token, ok, err := m.store.Get(m.opts.TokenKey)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		Logger.Debugf("No persisted session token")
		return nil, nil
	}

	data, err := m.request(ctx, "SetSession", token)
	var remote *client.RemoteError
	if errors.As(err, &remote) {
		Logger.Warningf("Session was rejected: %s", remote.Text)
		m.setAuth(false)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set session: %w", err)
	}

	if !isTruthy(data) {
		Logger.Infof("Persisted session is not valid")
		m.setAuth(false)
		return nil, nil
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		// some peers only answer true
		session = nil
	}
	m.setAuth(true)
	return session, nil
}

// GetClientToken requests a one-time client token used to start a login
func (m *Manager) GetClientToken(ctx context.Context) (string, error) {
	data, err := m.request(ctx, "GetClientToken", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get client token: %w", err)
	}
	var res struct {
		Token string `json:"token"`
	}
	if isTruthy(data) {
		if err := json.Unmarshal(data, &res); err != nil {
			return "", fmt.Errorf("invalid client token reply: %w", err)
		}
	}
	return res.Token, nil
}

// Login fetches a client token, hands it to prompt and waits for the
// Session push of the peer. The session id is persisted as token.
func (m *Manager) Login(ctx context.Context, prompt LoginPrompt) error {
	token, err := m.GetClientToken(ctx)
	if err != nil {
		return err
	}

	sessions := m.client.On("Session")
	defer sessions.Unsubscribe()

	promptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	promptDone := make(chan error, 1)
	go func() {
		promptDone <- prompt.Prompt(promptCtx, token)
	}()

	for {
		select {
		case env, ok := <-sessions.C:
			if !ok {
				return ErrNoSession
			}
			if env.HasError() {
				Logger.Warningf("Ignoring failed session push: %s", env.ErrorText())
				continue
			}
			var session Session
			if err := m.client.DecodeEnvelope(env, &session); err != nil {
				Logger.Warningf("Ignoring invalid session push: %v", err)
				continue
			}
			cancel()
			if session.ID != "" {
				if err := m.store.Set(m.opts.TokenKey, session.ID); err != nil {
					return fmt.Errorf("failed to persist session: %w", err)
				}
			}
			Logger.Infof("Logged in as %s", session.UserID)
			m.setAuth(true)
			return nil
		case err := <-promptDone:
			if err != nil {
				return fmt.Errorf("login prompt failed: %w", err)
			}
			return ErrNoSession
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Logout forgets the session token, resets the signals and tells the peer
func (m *Manager) Logout() error {
	if err := m.store.Delete(m.opts.TokenKey); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	m.setAuth(false)
	m.roles.Set(nil)
	m.user.Set(nil)
	return m.client.Publish("Logout", nil)
}

// Close stops watching the client. The client itself stays usable.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
		m.auth.Close()
		m.user.Close()
		m.roles.Close()
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *Manager) watchConnection(states *broadcast.Subscription[common.ConnectionState]) {
	defer m.wg.Done()
	defer states.Unsubscribe()

	var calls sync.WaitGroup
	defer calls.Wait()

	for {
		select {
		case state, ok := <-states.C():
			if !ok {
				return
			}
			if state != common.StateConnected {
				continue
			}
			calls.Add(1)
			go func() {
				defer calls.Done()
				if _, err := m.SetSession(m.ctx); err != nil && m.ctx.Err() == nil {
					Logger.Warningf("SetSession failed: %v", err)
				}
			}()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) watchAuth(auth *broadcast.Subscription[bool]) {
	defer m.wg.Done()
	defer auth.Unsubscribe()

	for {
		select {
		case isAuth, ok := <-auth.C():
			if !ok {
				return
			}
			if isAuth {
				m.fetchProfile(m.ctx)
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// fetchProfile requests roles and user concurrently
func (m *Manager) fetchProfile(ctx context.Context) {
	var wg sync.WaitGroup
	var rolesData, userData json.RawMessage
	var rolesErr, userErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		rolesData, rolesErr = m.request(ctx, "GetMyRoles", nil)
	}()
	go func() {
		defer wg.Done()
		userData, userErr = m.request(ctx, "ReadUser", nil)
	}()
	wg.Wait()

	if rolesErr != nil {
		Logger.Warningf("Failed to fetch roles: %v", rolesErr)
		m.roles.Set(nil)
	} else {
		var assignments []UserRole
		if !isTruthy(rolesData) {
			m.roles.Set(nil)
		} else if err := json.Unmarshal(rolesData, &assignments); err != nil {
			Logger.Warningf("Invalid roles reply: %v", err)
			m.roles.Set(nil)
		} else {
			m.roles.Set(NewRoles(assignments))
		}
	}

	if userErr != nil || !isTruthy(userData) {
		if userErr != nil {
			Logger.Warningf("Failed to fetch user: %v", userErr)
		}
		m.user.Set(nil)
		return
	}
	m.user.Set(userData)
}

// request sends one request and waits for its reply
func (m *Manager) request(ctx context.Context, subject string, data any) (json.RawMessage, error) {
	call, err := m.client.Send(subject, data, client.WithTimeout(m.opts.Timeout))
	if err != nil {
		return nil, err
	}
	res, err := call.Wait(ctx)
	if err != nil {
		call.Cancel()
		return nil, err
	}
	return res, nil
}

// setAuth publishes the authentication state if it changed
func (m *Manager) setAuth(isAuth bool) {
	if m.auth.Update(func(old bool) (bool, bool) { return isAuth, old != isAuth }) {
		Logger.Infof("Authenticated: %v", isAuth)
	}
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// isTruthy is false for empty, null and false replies
func isTruthy(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("false"))
}
