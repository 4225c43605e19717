package remote

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorialwall/internal/config"
	"memorialwall/internal/handler"
	"memorialwall/internal/model"
	"memorialwall/internal/wall"
)

const (
	testScope  = "memorial-test"
	testOrigin = "http://localhost:8080"
)

// newTestServer 実際のルーターと SQLite で row-store サーバーを起動
func newTestServer(t *testing.T) (*httptest.Server, *handler.Handler) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "wall.db"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE entries (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		author TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		deleted_at DATETIME NULL
	)`)
	require.NoError(t, err)

	h := handler.New(db, config.Config{
		AllowedOrigins: []string{testOrigin},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, nil)
	go h.HandleBroadcast()

	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return srv, h
}

func clientCount(h *handler.Handler) int {
	h.ClientMu.RLock()
	defer h.ClientMu.RUnlock()
	return len(h.Clients)
}

func TestLoad_OrderAndScope(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	s := New(srv.URL, nil, WithOrigin(testOrigin))

	first, err := s.Insert(ctx, testScope, "A", "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Insert(ctx, testScope, "B", "second")
	require.NoError(t, err)
	_, err = s.Insert(ctx, "another-event", "C", "elsewhere")
	require.NoError(t, err)

	entries, err := s.Load(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestInsert_ServerRejection(t *testing.T) {
	srv, _ := newTestServer(t)
	s := New(srv.URL, nil)

	_, err := s.Insert(context.Background(), testScope, " ", "hello")
	assert.ErrorIs(t, err, wall.ErrWrite)
	assert.Contains(t, err.Error(), "400")
}

func TestWall_InsertArrivesThroughStream(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	w := wall.Open(ctx, New(srv.URL, nil, WithOrigin(testOrigin)), testScope, nil)
	defer w.Close()
	require.True(t, w.Live())

	e, err := w.Submit(ctx, "A", "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		list := w.Entries()
		return len(list) == 1 && list[0].ID == e.ID
	}, 5*time.Second, 20*time.Millisecond)

	assert.Never(t, func() bool { return len(w.Entries()) != 1 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWall_SeesOtherClientsAndDeletes(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	w := wall.Open(ctx, New(srv.URL, nil, WithOrigin(testOrigin)), testScope, nil)
	defer w.Close()

	// 別のクライアントからの投稿
	other := New(srv.URL, nil)
	e, err := other.Insert(ctx, testScope, "B", "from another device")
	require.NoError(t, err)
	_, err = other.Insert(ctx, "another-event", "C", "not for us")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(w.Entries()) == 1 }, 5*time.Second, 20*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/entries/"+e.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Eventually(t, func() bool { return len(w.Entries()) == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestWall_CloseReleasesStream(t *testing.T) {
	srv, h := newTestServer(t)

	w := wall.Open(context.Background(), New(srv.URL, nil, WithOrigin(testOrigin)), testScope, nil)
	require.Eventually(t, func() bool { return clientCount(h) == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Close())
	require.Eventually(t, func() bool { return clientCount(h) == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestSubscribe_ContextCancelClosesStream(t *testing.T) {
	srv, h := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := New(srv.URL, nil, WithOrigin(testOrigin)).Subscribe(ctx, testScope, func(model.Event) {})
	require.NoError(t, err)
	require.Equal(t, 1, clientCount(h))

	cancel()
	require.Eventually(t, func() bool { return clientCount(h) == 0 }, 5*time.Second, 20*time.Millisecond)
	assert.NoError(t, sub.Close())
}

func TestSubscribe_ForbiddenOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	_, err := New(srv.URL, nil, WithOrigin("http://forbidden.example.com")).
		Subscribe(context.Background(), testScope, func(model.Event) {})
	assert.ErrorIs(t, err, wall.ErrConnectivity)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctx := context.Background()
	s := New(url, nil)

	_, err := s.Load(ctx, testScope)
	assert.ErrorIs(t, err, wall.ErrConnectivity)

	// 接続できなくても空のリストで動作を続ける
	w := wall.Open(ctx, s, testScope, nil)
	defer w.Close()
	assert.Empty(t, w.Entries())

	_, err = w.Submit(ctx, "A", "hello")
	assert.ErrorIs(t, err, wall.ErrWrite)
	assert.Empty(t, w.Entries())
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://wall.example":      "ws://wall.example/ws?scope=a+b",
		"https://wall.example/api": "wss://wall.example/api/ws?scope=a+b",
	}
	for base, want := range cases {
		got, err := New(base, nil).wsURL("a b")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := New("ftp://wall.example", nil).wsURL("x")
	assert.Error(t, err)
}
