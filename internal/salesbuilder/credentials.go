package salesbuilder

import (
	"os"
	"sync"
)

// CredentialProvider supplies the authorization token for the Sales Builder
// API. Refresh re-reads the token from its configured source and returns the
// new value instead of mutating ambient process state, so one flow's refresh
// cannot interfere with another's in-flight request.
type CredentialProvider interface {
	Token() string
	Refresh() string
}

// EnvCredentials reads the token from an environment variable, caching the
// value between refreshes.
type EnvCredentials struct {
	envVar string

	mu     sync.Mutex
	cached string
}

// NewEnvCredentials creates a provider backed by the named environment variable.
func NewEnvCredentials(envVar string) *EnvCredentials {
	return &EnvCredentials{
		envVar: envVar,
		cached: os.Getenv(envVar),
	}
}

// Token returns the last loaded token value.
func (c *EnvCredentials) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// Refresh re-reads the environment variable and returns the current value.
func (c *EnvCredentials) Refresh() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = os.Getenv(c.envVar)
	return c.cached
}

// StaticCredentials is a fixed-token provider, used when the token comes from
// configuration rather than a refreshable source.
type StaticCredentials string

func (c StaticCredentials) Token() string   { return string(c) }
func (c StaticCredentials) Refresh() string { return string(c) }
