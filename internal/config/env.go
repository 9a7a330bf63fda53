package config

import "os"

// Current-scheme environment variable names for OIDC parameters. These
// override config-file values when set.
const (
	EnvOIDCClientID         = "LB_OIDC_CLIENT_ID"
	EnvOIDCClientSecret     = "LB_OIDC_CLIENT_SECRET" //nolint:gosec // variable name, not a credential
	EnvOIDCIssuer           = "LB_OIDC_ISSUER"
	EnvOIDCAuthEndpoint     = "LB_OIDC_AUTH_ENDPOINT"
	EnvOIDCTokenEndpoint    = "LB_OIDC_TOKEN_ENDPOINT"
	EnvOIDCUserInfoEndpoint = "LB_OIDC_USERINFO_ENDPOINT"
)

// legacyOIDCNames maps the current variable names to their pre-prefix
// spellings. The legacy name is consulted only when the current one is
// unset; nothing is written back into the process environment.
var legacyOIDCNames = map[string]string{
	EnvOIDCClientID:         "OIDC_CLIENT_ID",
	EnvOIDCClientSecret:     "OIDC_CLIENT_SECRET",
	EnvOIDCIssuer:           "OIDC_ISSUER",
	EnvOIDCAuthEndpoint:     "OIDC_AUTH_ENDPOINT",
	EnvOIDCTokenEndpoint:    "OIDC_TOKEN_ENDPOINT",
	EnvOIDCUserInfoEndpoint: "OIDC_USERINFO_ENDPOINT",
}

// RequiredOIDCVars lists every environment variable that must be set
// before the auth gate can be configured.
var RequiredOIDCVars = []string{
	EnvOIDCClientID,
	EnvOIDCClientSecret,
	EnvOIDCIssuer,
	EnvOIDCAuthEndpoint,
	EnvOIDCTokenEndpoint,
	EnvOIDCUserInfoEndpoint,
}

// LookupFunc abstracts environment lookup so validation and overrides can
// be tested without mutating the process environment.
type LookupFunc func(key string) (string, bool)

// OSLookup reads from the real process environment.
func OSLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// LookupOIDCVar resolves one OIDC variable, checking the current-scheme
// name first and the legacy name second.
func LookupOIDCVar(name string, lookup LookupFunc) (string, bool) {
	if value, ok := lookup(name); ok && value != "" {
		return value, true
	}
	if legacy, ok := legacyOIDCNames[name]; ok {
		if value, ok := lookup(legacy); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

// MissingOIDCVars returns the required OIDC variables that are not set,
// in declaration order. Legacy-named variables satisfy their current-scheme
// counterparts. An empty result means the auth gate can proceed.
func MissingOIDCVars(lookup LookupFunc) []string {
	var missing []string
	for _, name := range RequiredOIDCVars {
		if _, ok := LookupOIDCVar(name, lookup); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// WithOverrides returns a copy of the OIDC configuration with any set
// environment variables layered over the file values. The receiver is not
// modified.
func (o OIDCConfig) WithOverrides(lookup LookupFunc) OIDCConfig {
	out := o
	if v, ok := LookupOIDCVar(EnvOIDCClientID, lookup); ok {
		out.ClientID = v
	}
	if v, ok := LookupOIDCVar(EnvOIDCIssuer, lookup); ok {
		out.Issuer = v
	}
	if v, ok := LookupOIDCVar(EnvOIDCAuthEndpoint, lookup); ok {
		out.Endpoints.Authorization = v
	}
	if v, ok := LookupOIDCVar(EnvOIDCTokenEndpoint, lookup); ok {
		out.Endpoints.Token = v
	}
	if v, ok := LookupOIDCVar(EnvOIDCUserInfoEndpoint, lookup); ok {
		out.Endpoints.UserInfo = v
	}
	return out
}

// SessionTimeoutSeconds returns the session timeout, defaulting to seven
// days when unset or invalid.
func (s OIDCSession) SessionTimeoutSeconds() int64 {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 604800
}
