package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/example/taskify/domain/user"
	"github.com/valyala/fasthttp"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	TokenType    string        `json:"token_type"`
	User         user.Identity `json:"user"`
}

func (r sessionResponse) toSession(now time.Time) user.Session {
	session := user.Session{
		User:         r.User,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		session.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return session
}

// SignUp creates an account and stores the session it comes with.
func (c *Client) SignUp(ctx context.Context, email, password string) (user.Session, error) {
	return c.authenticate(ctx, "/api/v1/auth/signup", email, password)
}

// SignIn exchanges credentials for a session and stores it.
func (c *Client) SignIn(ctx context.Context, email, password string) (user.Session, error) {
	return c.authenticate(ctx, "/api/v1/auth/signin", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (user.Session, error) {
	var resp sessionResponse
	req := credentialsRequest{Email: email, Password: password}
	if err := c.do(ctx, fasthttp.MethodPost, path, "", req, &resp); err != nil {
		return user.Session{}, err
	}

	session := resp.toSession(c.now())
	if err := c.sessions.Save(session); err != nil {
		return user.Session{}, fmt.Errorf("save session: %w", err)
	}
	c.logger.Debug("Signed in", "user_id", session.User.ID)
	return session, nil
}

// SignOut forgets the stored session. Tokens are stateless, so nothing is
// sent to the backend.
func (c *Client) SignOut() error {
	if err := c.sessions.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Session returns the stored session, if any. It does not contact the
// backend.
func (c *Client) Session() (user.Session, bool) {
	session, ok, err := c.sessions.Load()
	if err != nil {
		c.logger.Warn("Failed to load session", "error", err)
		return user.Session{}, false
	}
	return session, ok
}

// CurrentUser asks the backend who the stored session belongs to.
func (c *Client) CurrentUser(ctx context.Context) (user.Identity, error) {
	var identity user.Identity
	if err := c.doAuthorized(ctx, fasthttp.MethodGet, "/api/v1/auth/user", nil, &identity); err != nil {
		return user.Identity{}, err
	}
	return identity, nil
}
