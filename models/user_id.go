package models

import (
	"errors"
	"strings"
)

// UserID is the canonical user identifier. It is established once at the
// auth boundary and passed through the gamification core unchanged.
type UserID string

var ErrEmptyUserID = errors.New("user id is required")

func ParseUserID(raw string) (UserID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrEmptyUserID
	}
	return UserID(id), nil
}

func (id UserID) String() string { return string(id) }
