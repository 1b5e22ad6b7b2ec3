package auth

import "errors"

var (
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrMissingSubject = errors.New("auth: token has no subject")
	ErrInvalidRole    = errors.New("auth: token role not recognised")
	ErrTokenExpired   = errors.New("auth: token expired")
)
