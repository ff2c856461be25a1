package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/example/taskify/domain/task"
	"github.com/fasthttp/websocket"
)

const closeWriteTimeout = time.Second

// Subscription is an open change feed connection.
type Subscription struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	closing chan struct{}
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe opens the change feed of the signed-in user. handler is called
// once per event, in arrival order, from a single goroutine owned by the
// subscription. ctx bounds the connection attempt only; the feed stays open
// until Unsubscribe or until the backend closes it.
//
// handler must not call Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, handler func(task.ChangeEvent)) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("subscribe: handler is nil")
	}

	session, err := c.currentSession(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := c.dialFeed(ctx, session.AccessToken)
	if IsUnauthorized(err) {
		session, err = c.refreshSession(ctx, session.AccessToken)
		if err != nil {
			return nil, err
		}
		conn, err = c.dialFeed(ctx, session.AccessToken)
	}
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		conn:    conn,
		logger:  c.logger,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go sub.read(handler)

	c.logger.Debug("Change feed subscribed", "user_id", session.User.ID)
	return sub, nil
}

func (c *Client) dialFeed(ctx context.Context, token string) (*websocket.Conn, error) {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/realtime"
	u.RawQuery = url.Values{"access_token": {token}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Code:       "handshake_failed",
				Message:    "change feed handshake rejected",
			}
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}
	return conn, nil
}

func (s *Subscription) read(handler func(task.ChangeEvent)) {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.logger.Warn("Change feed closed", "error", err)
			}
			return
		}

		var event task.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("Dropping undecodable change event", "error", err)
			continue
		}
		handler(event)
	}
}

// Unsubscribe closes the connection and waits until the handler has
// returned for the last time. Calls after the first do nothing.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout),
		)
		if closeErr := s.conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = closeErr
		}
		<-s.done
	})
	return err
}

// Done is closed when the reader goroutine has exited, either after
// Unsubscribe or because the connection dropped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the feed ended on its own, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
