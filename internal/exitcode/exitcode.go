// Package exitcode defines exit codes for the CLI.
package exitcode

import "cloudtodo/internal/service"

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, invalid input, unknown task).
	UserError = 1

	// AuthError indicates an auth/config error or a missing session.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3

	// PermissionError indicates the backend denied access to the data.
	PermissionError = 4
)

// For returns the exit code for err, classified by its service.Kind.
func For(err error) int {
	if err == nil {
		return Success
	}
	switch service.KindOf(err) {
	case service.KindValidation, service.KindNotFound:
		return UserError
	case service.KindAuth:
		return AuthError
	case service.KindPermission:
		return PermissionError
	default:
		return BackendError
	}
}
