package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/watchroom/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

var (
	ErrSendQueueFull = errors.New("send queue is full")
	ErrClientClosed  = errors.New("client is closed")
)

// client owns the write side of a websocket connection. Messages are queued and written
// by writePump so a slow peer never blocks the sender.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *client {
	return &client{
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

func (c *client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		metrics.MessagesDropped.Inc()
		return ErrSendQueueFull
	}
}

// Close flushes queued messages and closes the connection.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

func (c *client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(messageType, data)
}

// writePump closes stopped once the connection is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to write ping", "error", err)
				return
			}
		case <-c.done:
			for {
				select {
				case data := <-c.send:
					if err := c.write(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *client) prepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}
