package prometheus

import "github.com/promregion/mcp-prometheus/internal/server"

// AuthKind identifies the authentication mode resolved for a region.
type AuthKind int

const (
	// AuthNone sends no credentials.
	AuthNone AuthKind = iota

	// AuthBearer sends an Authorization: Bearer header.
	AuthBearer

	// AuthBasic uses HTTP basic authentication.
	AuthBasic
)

// AuthMode is the resolved authentication for a region. Absence of
// credentials is a valid, non-error outcome (Kind == AuthNone).
type AuthMode struct {
	Kind     AuthKind
	Token    string
	Username string
	Password string
}

// ResolveAuth decides the authentication mode for a region. A non-empty
// bearer token takes precedence over basic-auth credentials; basic auth
// requires both username and password.
func ResolveAuth(rc server.RegionConfig) AuthMode {
	if rc.Token != "" {
		return AuthMode{Kind: AuthBearer, Token: rc.Token}
	}
	if rc.Username != "" && rc.Password != "" {
		return AuthMode{Kind: AuthBasic, Username: rc.Username, Password: rc.Password}
	}
	return AuthMode{Kind: AuthNone}
}
