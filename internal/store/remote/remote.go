// Package remote talks to the message-wall row-store server over HTTP and
// follows its WebSocket change stream.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"memorialwall/internal/model"
	"memorialwall/internal/wall"
)

// readyTimeout bounds the wait for the server's ready frame
const readyTimeout = 10 * time.Second

// Store is a wall.Store backed by the row-store server at BaseURL
type Store struct {
	baseURL string
	origin  string
	client  *http.Client
	dialer  *websocket.Dialer
	log     *zap.SugaredLogger
}

var _ wall.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithOrigin sets the Origin header sent to the server
func WithOrigin(origin string) Option {
	return func(s *Store) { s.origin = origin }
}

// New creates a Store for the server at baseURL
func New(baseURL string, log *zap.SugaredLogger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		dialer:  websocket.DefaultDialer,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Live is true: inserts come back through the change stream
func (s *Store) Live() bool { return true }

// Load fetches the newest entries of scope, most recent first
func (s *Store) Load(ctx context.Context, scope string) ([]model.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/entries?scope="+url.QueryEscape(scope), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wall.ErrConnectivity, err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wall.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET /entries returned %s", wall.ErrConnectivity, errorMessage(resp))
	}

	var entries []model.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", wall.ErrConnectivity, err)
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	return entries, nil
}

// Insert posts a new entry. The server assigns id and created_at.
func (s *Store) Insert(ctx context.Context, scope, author, body string) (model.Entry, error) {
	payload, err := json.Marshal(map[string]string{"scope": scope, "author": author, "body": body})
	if err != nil {
		return model.Entry{}, fmt.Errorf("%w: %v", wall.ErrWrite, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/entries", bytes.NewReader(payload))
	if err != nil {
		return model.Entry{}, fmt.Errorf("%w: %v", wall.ErrWrite, err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return model.Entry{}, fmt.Errorf("%w: %v", wall.ErrWrite, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return model.Entry{}, fmt.Errorf("%w: POST /entries returned %s", wall.ErrWrite, errorMessage(resp))
	}

	var e model.Entry
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return model.Entry{}, fmt.Errorf("%w: invalid response: %v", wall.ErrWrite, err)
	}
	return e, nil
}

func (s *Store) setHeaders(req *http.Request) {
	if s.origin != "" {
		req.Header.Set("Origin", s.origin)
	}
}

// errorMessage formats a non-success response for error wrapping
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Sprintf("%d (%s)", resp.StatusCode, errResp.Error)
	}
	return fmt.Sprintf("%d", resp.StatusCode)
}

// wsURL converts the base URL into the change stream URL for scope
func (s *Store) wsURL(scope string) (string, error) {
	u, err := url.Parse(s.baseURL + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.RawQuery = url.Values{"scope": {scope}}.Encode()
	return u.String(), nil
}

// stream is an open change stream
type stream struct {
	conn      *websocket.Conn
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (st *stream) stopped() bool {
	select {
	case <-st.stop:
		return true
	default:
		return false
	}
}

// Close closes the connection and waits for the read loop to exit
func (st *stream) Close() error {
	var err error
	st.closeOnce.Do(func() {
		close(st.stop)
		st.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = st.conn.Close()
	})
	<-st.done
	return err
}

// Subscribe opens the change stream for scope. Events are delivered in the
// order the server sends them. When the stream breaks it is not reopened.
func (s *Store) Subscribe(ctx context.Context, scope string, onChange func(model.Event)) (wall.Subscription, error) {
	target, err := s.wsURL(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wall.ErrConnectivity, err)
	}

	header := http.Header{}
	if s.origin != "" {
		header.Set("Origin", s.origin)
	}

	conn, resp, err := s.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", wall.ErrConnectivity, target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", wall.ErrConnectivity, target, err)
	}

	// サーバーが購読を登録するまで待つ
	conn.SetReadDeadline(time.Now().Add(readyTimeout))
	var hello model.Event
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != model.EventReady {
		conn.Close()
		if err == nil {
			err = fmt.Errorf("unexpected first frame %q", hello.Type)
		}
		return nil, fmt.Errorf("%w: change stream handshake: %v", wall.ErrConnectivity, err)
	}
	conn.SetReadDeadline(time.Time{})

	st := &stream{conn: conn, stop: make(chan struct{}), done: make(chan struct{})}
	go s.readLoop(st, scope, onChange)

	// コンテキスト終了時にストリームを閉じる
	go func() {
		select {
		case <-ctx.Done():
			st.Close()
		case <-st.done:
		}
	}()

	s.log.Debugf("[remote %s] 📡 Change stream connected", scope)
	return st, nil
}

func (s *Store) readLoop(st *stream, scope string, onChange func(model.Event)) {
	defer close(st.done)

	for {
		var ev model.Event
		if err := st.conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !st.stopped() {
				s.log.Warnf("[remote %s] ⚠️  Change stream ended, list is now stale: %v", scope, err)
			}
			return
		}
		if ev.Type == model.EventReady {
			continue
		}
		onChange(ev)
	}
}
