package session

import "errors"

var (
	// ErrInvalidCredentials is deliberately identical for "no such user"
	// and "wrong password" — a distinct error would tell an attacker which
	// emails are registered.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned by CreateAccount when the email already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrAuthInProgress rejects a second Login/Register while one is still
	// in flight. One attempt at a time per manager; the caller retries
	// after the first attempt reaches a terminal state.
	ErrAuthInProgress = errors.New("authentication already in progress")
)
