package database

import "errors"

// ErrUserNotFound is returned when an attempt is made to retrieve
// a user with an id that doesn't exist.
var ErrUserNotFound = errors.New("user not found")
