package api

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure from the remote boundary.
type Kind string

const (
	// KindAuthenticationRejected is the 401 class. The client tears the
	// session down whenever it sees one, regardless of the operation.
	KindAuthenticationRejected Kind = "authentication_rejected"
	// KindAuthorizationDenied is the 403 class; surfaced, no state change.
	KindAuthorizationDenied Kind = "authorization_denied"
	// KindNotFound is the 404 class.
	KindNotFound Kind = "not_found"
	// KindValidationFailed is the 422 class and carries field messages.
	KindValidationFailed Kind = "validation_failed"
	// KindServerFault is the 5xx class.
	KindServerFault Kind = "server_fault"
	// KindTimeout marks a request that exceeded its bounded wait.
	KindTimeout Kind = "timeout"
	// KindNetworkUnreachable marks a transport failure before any response.
	KindNetworkUnreachable Kind = "network_unreachable"
)

// RemoteError is a classified remote failure. StatusCode is zero for
// transport-level failures (timeout, unreachable).
type RemoteError struct {
	Kind       Kind
	StatusCode int
	Messages   []string
}

func (e *RemoteError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("remote error: %s (status=%d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("remote error: %s (status=%d): %s", e.Kind, e.StatusCode, strings.Join(e.Messages, "; "))
}

// IsKind reports whether err is a RemoteError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == kind
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401:
		return KindAuthenticationRejected
	case status == 403:
		return KindAuthorizationDenied
	case status == 404:
		return KindNotFound
	case status == 422:
		return KindValidationFailed
	case status >= 500:
		return KindServerFault
	default:
		// 400, 409 and the rest carry validation-style messages.
		return KindValidationFailed
	}
}
