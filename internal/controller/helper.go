package controller

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/room"
	roomservice "github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/pkg/validator"
	"github.com/sharetube/watchroom/pkg/wsrouter"
)

var ErrValidationError = errors.New("validation error")

type validationError struct {
	errs []validator.ValidationError
}

func (e validationError) Error() string {
	return ErrValidationError.Error()
}

func (e validationError) Unwrap() error {
	return ErrValidationError
}

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PermissionDeniedPayload struct {
	Action string `json:"action,omitempty"`
	Reason string `json:"reason"`
}

type ErrorMessagePayload struct {
	Message string                      `json:"message"`
	Errors  []validator.ValidationError `json:"errors,omitempty"`
}

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (c controller) validateInput(input any) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError{errs: errs}
	}

	return nil
}

func (c controller) writeToClient(ctx context.Context, cl *client, output *Output) {
	if cl == nil {
		return
	}

	if err := cl.Send(output); err != nil {
		c.logger.WarnContext(ctx, "failed to send message", "type", output.Type, "error", err)
	}
}

// errorMessage maps errors to the text shown to the sender. The bool reports whether
// the error is an expected rejection.
func (c controller) errorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, roomservice.ErrRoomNotFound),
		errors.Is(err, roomservice.ErrRoomExpired),
		errors.Is(err, room.ErrRoomNotFound):
		return "room not found or expired", true
	case errors.Is(err, roomservice.ErrNotInRoom):
		return "join a room first", true
	case errors.Is(err, roomservice.ErrAlreadyInRoom):
		return "already in a room", true
	case errors.Is(err, roomservice.ErrJoiningIDTaken):
		return "a room with this name and joining id already exists", true
	case errors.Is(err, roomservice.ErrInvalidAuthToken):
		return "invalid auth token", true
	case errors.Is(err, domain.ErrMembersLimitReached):
		return "room is full", true
	case errors.Is(err, domain.ErrPlaylistEmpty):
		return "playlist is empty", true
	case errors.Is(err, domain.ErrPlaylistLimitReached):
		return "playlist is too long", true
	case errors.Is(err, domain.ErrUnknownPolicy):
		return "unknown failover policy", true
	case errors.Is(err, wsrouter.ErrInvalidMessage):
		return "message must be a json object with a type", true
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		return "unknown message type", true
	case errors.Is(err, wsrouter.ErrInvalidPayload):
		return "invalid payload", true
	}

	return "internal error", false
}

func (c controller) handleError(ctx context.Context, _ *websocket.Conn, err error) {
	cl := c.getClientFromCtx(ctx)

	if errors.Is(err, roomservice.ErrPermissionDenied) {
		c.logger.InfoContext(ctx, "permission denied", "error", err)
		c.writeToClient(ctx, cl, &Output{
			Type: "permission-denied",
			Payload: PermissionDeniedPayload{
				Action: wsrouter.GetMessageTypeFromCtx(ctx),
				Reason: "only room admins can do this",
			},
		})
		return
	}

	var verr validationError
	if errors.As(err, &verr) {
		c.writeToClient(ctx, cl, &Output{
			Type: "error-message",
			Payload: ErrorMessagePayload{
				Message: "invalid payload",
				Errors:  verr.errs,
			},
		})
		return
	}

	message, known := c.errorMessage(err)
	if known {
		c.logger.InfoContext(ctx, "request rejected", "error", err)
	} else {
		c.logger.ErrorContext(ctx, "failed to handle message", "error", err)
	}

	c.writeToClient(ctx, cl, &Output{
		Type:    "error-message",
		Payload: ErrorMessagePayload{Message: message},
	})
}
