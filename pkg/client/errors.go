package client

import "errors"

var (
	// ErrDaemonNotRunning means the daemon socket does not exist.
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied means the caller may not open the daemon socket.
	ErrPermissionDenied = errors.New("permission denied")
)
