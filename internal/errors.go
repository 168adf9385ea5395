package internal

import "fmt"

// Error codes surfaced to the originating connection as error{code, message}.
const (
	ErrAlreadyInRoom    = "already_in_room"
	ErrRoomNotFound     = "room_not_found"
	ErrRoomInProgress   = "room_in_progress"
	ErrRoomFull         = "room_full"
	ErrNotInRoom        = "not_in_room"
	ErrPlayerNotFound   = "player_not_found"
	ErrForbidden        = "forbidden"
	ErrCannotKickHost   = "cannot_kick_host"
	ErrMissingPlayerID  = "missing_player_id"
	ErrAlreadyStarted   = "already_started"
	ErrAlreadyEndedTurn = "already_ended_turn"
	ErrTurnMismatch     = "turn_mismatch"
	ErrGameNotStarted   = "game_not_started"
	ErrMissingType      = "missing_type"
	ErrUnsupportedType  = "unsupported_type"
	ErrInvalidMessage   = "invalid_message"
)

// CoordError is a client-visible coordinator failure. It never crashes the
// handler; it is replied to the sender and leaves shared state untouched.
type CoordError struct {
	Code    string
	Message string
}

func (e *CoordError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCoordError builds a client-visible error with the given code.
func NewCoordError(code, message string) *CoordError {
	return &CoordError{Code: code, Message: message}
}

// AsCoordError extracts a CoordError, or wraps err as an invalid_message.
func AsCoordError(err error) *CoordError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CoordError); ok {
		return ce
	}
	return &CoordError{Code: ErrInvalidMessage, Message: err.Error()}
}
