package model

import "errors"

// ErrTokenAlreadyUsed is returned by reset ledgers for a token id that was
// consumed before.
var ErrTokenAlreadyUsed = errors.New("token already used")
