package firebase

import (
	"context"
	"sync"

	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"

	"kirim/pkg/errors"
)

// DevAuthClient is a credential-free stand-in for the Firebase auth
// collaborator, used in development mode. Accounts live in memory and the
// issued token is the account's uid, so the gateway runs without a Firebase
// project.
type DevAuthClient struct {
	mu    sync.Mutex
	users map[string]*devUser
	byUID map[string]*devUser
}

type devUser struct {
	uid         string
	email       string
	password    string
	displayName string
}

func NewDevAuthClient() *DevAuthClient {
	return &DevAuthClient{
		users: make(map[string]*devUser),
		byUID: make(map[string]*devUser),
	}
}

func (c *DevAuthClient) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[email]; ok {
		return "", errors.BadRequest("Email already registered", nil)
	}

	u := &devUser{
		uid:         uuid.New().String(),
		email:       email,
		password:    password,
		displayName: displayName,
	}
	c.users[email] = u
	c.byUID[u.uid] = u
	return u.uid, nil
}

func (c *DevAuthClient) SignInWithEmailPassword(email, password string) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[email]
	if !ok || u.password != password {
		return "", "", errors.Unauthorized("Invalid credentials", nil)
	}
	return u.uid, u.uid, nil
}

func (c *DevAuthClient) RefreshIDToken(refreshToken string) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byUID[refreshToken]; !ok {
		return "", "", errors.Unauthorized("Refresh token rejected", nil)
	}
	return refreshToken, refreshToken, nil
}

func (c *DevAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byUID[token]; !ok {
		return "", errors.Unauthorized("Invalid or expired token", nil)
	}
	return token, nil
}

// VerifyIDToken satisfies the middleware's verifier contract.
func (c *DevAuthClient) VerifyIDToken(ctx context.Context, token string) (*auth.Token, error) {
	uid, err := c.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &auth.Token{UID: uid}, nil
}

func (c *DevAuthClient) GetUserProfile(ctx context.Context, uid string) (string, string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.byUID[uid]
	if !ok {
		return "", "", "", errors.NotFound("User", nil)
	}
	return u.displayName, u.email, "", nil
}
