package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
	"github.com/sharetube/watchroom/pkg/metrics"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	if c.clients.isClosing() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	cl := newClient(conn, c.logger)
	if !c.clients.add(cl) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server is shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer c.clients.remove(cl)

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	go cl.writePump()
	cl.prepareRead()

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("connection_id", c.generateTimeBasedId()))
	ctx = context.WithValue(ctx, clientCtxKey, cl)
	c.logger.InfoContext(ctx, "connection opened")

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.logger.InfoContext(ctx, "connection lost", "error", err)
		}
	}

	c.disconnect(context.WithoutCancel(ctx), cl)
	cl.Close()
	<-cl.stopped
	c.logger.InfoContext(ctx, "connection closed")
}

// Shutdown closes every websocket once its queued messages are written, so clients
// still receive the room-destroyed events of a service shutdown. It waits for the
// connections to finish or for ctx.
func (c controller) Shutdown(ctx context.Context) error {
	if err := c.clients.closeAll(ctx); err != nil {
		return fmt.Errorf("failed to close websocket connections: %w", err)
	}

	c.logger.InfoContext(ctx, "all websocket connections closed")
	return nil
}

// disconnect is the implicit leave when the transport goes away.
func (c controller) disconnect(ctx context.Context, cl *client) {
	_, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{Conn: cl})
	if err != nil && !errors.Is(err, room.ErrNotInRoom) && !errors.Is(err, room.ErrRoomNotFound) {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
	}
}
