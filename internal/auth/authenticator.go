package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monthbook/internal/cache"
	"monthbook/internal/core"
	"monthbook/internal/storage"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong
// password, without saying which.
var ErrInvalidCredentials = errors.New("invalid email or password")

const (
	userCacheSize = 500
	userCacheTTL  = 5 * time.Minute
)

// Authenticator registers users, checks credentials and resolves session
// tokens to actors.
type Authenticator struct {
	users    storage.UserStore
	sessions *Sessions
	cache    *cache.LRUCache[core.User]
}

func NewAuthenticator(users storage.UserStore, sessions *Sessions) *Authenticator {
	return &Authenticator{
		users:    users,
		sessions: sessions,
		cache:    cache.NewLRUCache[core.User](userCacheSize, userCacheTTL),
	}
}

// Cache exposes the resolved user cache for sweeping and metrics.
func (a *Authenticator) Cache() *cache.LRUCache[core.User] {
	return a.cache
}

// SignUp validates params and stores a new user. A taken email is reported
// as a validation error on the email field.
func (a *Authenticator) SignUp(ctx context.Context, params core.SignUpParams) (core.User, error) {
	if err := params.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return core.User{}, err
	}
	u, err := a.users.CreateUser(ctx, core.User{
		ID:           core.NewID(),
		Email:        params.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, core.ErrDuplicate) {
		return core.User{}, core.NewValidationError("email", "has already been taken")
	}
	if err != nil {
		return core.User{}, fmt.Errorf("sign up: %w", err)
	}
	slog.InfoContext(ctx, "User signed up", "user_id", u.ID)
	return u, nil
}

// SignIn checks email and password and returns the matching user.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return core.User{}, ErrInvalidCredentials
	}
	u, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("sign in: %w", err)
	}
	ok, err := CheckPassword(u.PasswordHash, password)
	if err != nil {
		return core.User{}, fmt.Errorf("sign in: %w", err)
	}
	if !ok {
		return core.User{}, ErrInvalidCredentials
	}
	a.cache.Set(u.ID, u)
	return u, nil
}

// Issue creates a session token for u at its current session version.
func (a *Authenticator) Issue(u core.User) (string, time.Time, error) {
	return a.sessions.Issue(u.ID, u.SessionVersion)
}

// Resolve maps a session token to the actor it belongs to. An empty, invalid
// or stale token resolves to the anonymous actor without error; only
// persistence failures are returned.
func (a *Authenticator) Resolve(ctx context.Context, token string) (core.Actor, core.User, error) {
	if token == "" {
		return core.Actor{}, core.User{}, nil
	}
	userID, version, err := a.sessions.Parse(token)
	if err != nil {
		slog.DebugContext(ctx, "Rejected session token", "error", err)
		return core.Actor{}, core.User{}, nil
	}
	u, ok := a.cache.Get(userID)
	if !ok {
		u, err = a.users.GetUser(ctx, userID)
		if errors.Is(err, core.ErrNotFound) {
			return core.Actor{}, core.User{}, nil
		}
		if err != nil {
			return core.Actor{}, core.User{}, fmt.Errorf("resolve session: %w", err)
		}
		a.cache.Set(u.ID, u)
	}
	if version != u.SessionVersion {
		slog.DebugContext(ctx, "Rejected revoked session token", "user_id", u.ID)
		return core.Actor{}, core.User{}, nil
	}
	return core.ActorFor(u), u, nil
}

// SignOut revokes every session token issued to userID so far.
func (a *Authenticator) SignOut(ctx context.Context, userID string) error {
	if _, err := a.users.BumpSessionVersion(ctx, userID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	a.cache.Delete(userID)
	return nil
}
