package session

import "errors"

var (
	// ErrNoActiveSession is returned by Stop when no call session is active.
	ErrNoActiveSession = errors.New("no active call session")

	// ErrSessionActive is returned by Start while a session is already running.
	ErrSessionActive = errors.New("a call session is already active")

	// ErrNotConfigured is returned by Start when required credentials are
	// missing. No network call or device access happens in that case.
	ErrNotConfigured = errors.New("call session not configured")
)
