package ports

import "context"

// AuthProvider retrieves credentials for package hosts.
type AuthProvider interface {
	// GetCredentials returns the username (or access key) and password (or
	// secret key) for host. Empty values mean anonymous access.
	GetCredentials(ctx context.Context, host string) (username, password string, err error)
}
