package handler

import (
	"errors"
	"regexp"

	"github.com/goevery/presence/internal/ierr"
)

// RoomIdValidator only bounds the shape of room ids; their meaning is
// the application layer's naming convention ("user-<id>", "channel-<id>").
type RoomIdValidator struct {
	roomIdRegex *regexp.Regexp
}

func NewRoomIdValidator() *RoomIdValidator {
	return &RoomIdValidator{
		roomIdRegex: regexp.MustCompile(`^[\w-]{1,128}$`),
	}
}

func (v *RoomIdValidator) Validate(roomId string) error {
	valid := v.roomIdRegex.MatchString(roomId)
	if !valid {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid roomId"))
	}

	return nil
}
