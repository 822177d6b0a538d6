package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrInvalidMessage     = errors.New("invalid message")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrUnknownMessageType = errors.New("unknown message type")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles one message whose payload was decoded into T.
type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

// Middleware wraps handlers of every route. The payload is the decoded value.
type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives errors returned by handlers as well as decode and routing errors.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	errorHandler ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]route),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middlewares. Routes registered before the call are wrapped too.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) SetErrorHandler(h ErrorHandler) {
	r.errorHandler = h
}

// Handle registers a typed handler. Empty payloads decode into the zero value of T.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 || string(raw) == "null" {
				return payload, nil
			}

			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}

			return payload, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return handler(ctx, conn, payload.(T))
		},
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

// ServeConn reads messages until the connection fails and dispatches them one at a time.
// Bad messages are reported to the error handler and do not end the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			r.errorHandler(ctx, conn, ErrInvalidMessage)
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)

		rt, ok := r.routes[msg.Type]
		if !ok {
			r.errorHandler(msgCtx, conn, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type))
			continue
		}

		payload, err := rt.decode(msg.Payload)
		if err != nil {
			r.errorHandler(msgCtx, conn, err)
			continue
		}

		if err := r.chain(rt.handler)(msgCtx, conn, payload); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
