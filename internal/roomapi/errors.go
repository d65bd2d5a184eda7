package roomapi

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Join error codes returned by the room service.
const (
	CodeRoomFull      = -1
	CodeAlreadyMember = -2
	CodeRoomNotFound  = -3
)

// ServiceError is a failed room service call. Error returns text fit for
// showing to the user.
type ServiceError struct {
	StatusCode int
	// Code is the backend error_code, 0 when absent.
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	switch e.Code {
	case CodeRoomFull:
		return "This room is full - please try another room"
	case CodeAlreadyMember:
		return "You are already a member of this room"
	case CodeRoomNotFound:
		return "This room no longer exists - please refresh to see available rooms"
	}
	switch {
	case strings.Contains(e.Message, "Invalid room ID"):
		return "Invalid room ID - please try again"
	case strings.Contains(e.Message, "Missing user_id"):
		return "Invalid request - missing user information"
	case e.Message != "":
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsAlreadyMember reports whether err says the user already holds a seat
// in the room.
func IsAlreadyMember(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Code == CodeAlreadyMember
}
