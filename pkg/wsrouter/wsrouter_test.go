package wsrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seekInput struct {
	CurrentTime float64 `json:"current_time"`
}

type recorder struct {
	mu     sync.Mutex
	seeks  []float64
	types  []string
	errors []error
}

func (r *recorder) snapshot() ([]float64, []string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.seeks...), append([]string(nil), r.types...), append([]error(nil), r.errors...)
}

func newTestServer(t *testing.T, rec *recorder) *websocket.Conn {
	t.Helper()

	mux := New()
	mux.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			rec.mu.Lock()
			rec.types = append(rec.types, GetMessageTypeFromCtx(ctx))
			rec.mu.Unlock()
			return next(ctx, conn, payload)
		}
	})
	mux.SetErrorHandler(func(_ context.Context, _ *websocket.Conn, err error) {
		rec.mu.Lock()
		rec.errors = append(rec.errors, err)
		rec.mu.Unlock()
	})
	Handle(mux, "seek", func(_ context.Context, _ *websocket.Conn, input seekInput) error {
		rec.mu.Lock()
		rec.seeks = append(rec.seeks, input.CurrentTime)
		rec.mu.Unlock()
		return nil
	})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = mux.ServeConn(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServeConnRoutesTypedPayloads(t *testing.T) {
	rec := &recorder{}
	conn := newTestServer(t, rec)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"seek","payload":{"current_time":42.5}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"seek","payload":{"current_time":"x"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"seek"}`)))

	assert.Eventually(t, func() bool {
		seeks, _, errs := rec.snapshot()
		return len(seeks) == 2 && len(errs) == 3
	}, time.Second, 10*time.Millisecond)

	seeks, types, errs := rec.snapshot()
	assert.Equal(t, []float64{42.5, 0}, seeks)
	assert.Equal(t, []string{"seek", "seek"}, types, "middleware only sees routed messages")
	assert.ErrorIs(t, errs[0], ErrInvalidMessage)
	assert.ErrorIs(t, errs[1], ErrUnknownMessageType)
	assert.ErrorIs(t, errs[2], ErrInvalidPayload)
}
