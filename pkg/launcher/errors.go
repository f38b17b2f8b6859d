package launcher

import "fmt"

// ProcessSpawnError reports that no browser executable was found or the
// process could not be started.
type ProcessSpawnError struct {
	Executable string
	Err        error
}

func (e *ProcessSpawnError) Error() string {
	if e.Executable == "" {
		return fmt.Sprintf("launcher: no browser executable: %v", e.Err)
	}
	return fmt.Sprintf("launcher: failed to start %s: %v", e.Executable, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error {
	return e.Err
}

// SocketNotFoundError reports that the browser never announced its debugger
// URL on stderr.
type SocketNotFoundError struct {
	Reason string
}

func (e *SocketNotFoundError) Error() string {
	return "launcher: debugger websocket url not found: " + e.Reason
}
