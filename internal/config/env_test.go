package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestLookupOIDCVar(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		key    string
		want   string
		wantOK bool
	}{
		{
			name:   "current scheme",
			env:    map[string]string{"LB_OIDC_ISSUER": "https://idp.example.com"},
			key:    EnvOIDCIssuer,
			want:   "https://idp.example.com",
			wantOK: true,
		},
		{
			name:   "legacy fallback",
			env:    map[string]string{"OIDC_ISSUER": "https://legacy.example.com"},
			key:    EnvOIDCIssuer,
			want:   "https://legacy.example.com",
			wantOK: true,
		},
		{
			name: "current scheme wins over legacy",
			env: map[string]string{
				"LB_OIDC_CLIENT_ID": "new-id",
				"OIDC_CLIENT_ID":    "old-id",
			},
			key:    EnvOIDCClientID,
			want:   "new-id",
			wantOK: true,
		},
		{
			name:   "empty value treated as unset",
			env:    map[string]string{"LB_OIDC_CLIENT_ID": ""},
			key:    EnvOIDCClientID,
			wantOK: false,
		},
		{
			name:   "unset",
			env:    map[string]string{},
			key:    EnvOIDCTokenEndpoint,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupOIDCVar(tt.key, mapLookup(tt.env))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissingOIDCVars(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{
			name: "all unset",
			env:  map[string]string{},
			want: RequiredOIDCVars,
		},
		{
			name: "only client id set",
			env:  map[string]string{"LB_OIDC_CLIENT_ID": "my-client"},
			want: []string{
				"LB_OIDC_CLIENT_SECRET",
				"LB_OIDC_ISSUER",
				"LB_OIDC_AUTH_ENDPOINT",
				"LB_OIDC_TOKEN_ENDPOINT",
				"LB_OIDC_USERINFO_ENDPOINT",
			},
		},
		{
			name: "legacy names count as set",
			env: map[string]string{
				"OIDC_CLIENT_ID":         "c",
				"OIDC_CLIENT_SECRET":     "s",
				"OIDC_ISSUER":            "https://idp.example.com",
				"OIDC_AUTH_ENDPOINT":     "https://idp.example.com/authorize",
				"OIDC_TOKEN_ENDPOINT":    "https://idp.example.com/token",
				"OIDC_USERINFO_ENDPOINT": "https://idp.example.com/userinfo",
			},
			want: nil,
		},
		{
			name: "mixed schemes",
			env: map[string]string{
				"LB_OIDC_CLIENT_ID":     "c",
				"OIDC_CLIENT_SECRET":    "s",
				"LB_OIDC_ISSUER":        "https://idp.example.com",
				"OIDC_AUTH_ENDPOINT":    "https://idp.example.com/authorize",
				"LB_OIDC_TOKEN_ENDPOINT": "https://idp.example.com/token",
			},
			want: []string{"LB_OIDC_USERINFO_ENDPOINT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingOIDCVars(mapLookup(tt.env)))
		})
	}
}

func TestWithOverrides(t *testing.T) {
	base := OIDCConfig{
		ClientID: "file-client",
		Issuer:   "https://file.example.com",
		Endpoints: OIDCEndpoints{
			Authorization: "https://file.example.com/authorize",
			Token:         "https://file.example.com/token",
			UserInfo:      "https://file.example.com/userinfo",
		},
		Session: OIDCSession{CookieName: "cookie", Timeout: 3600, Scope: "openid"},
	}

	env := map[string]string{
		"LB_OIDC_CLIENT_ID": "env-client",
		"OIDC_ISSUER":       "https://env.example.com",
	}

	got := base.WithOverrides(mapLookup(env))

	assert.Equal(t, "env-client", got.ClientID)
	assert.Equal(t, "https://env.example.com", got.Issuer)
	assert.Equal(t, base.Endpoints, got.Endpoints)
	assert.Equal(t, base.Session, got.Session)

	// receiver untouched
	assert.Equal(t, "file-client", base.ClientID)
	assert.Equal(t, "https://file.example.com", base.Issuer)
}

func TestSessionTimeoutSeconds(t *testing.T) {
	assert.Equal(t, int64(3600), OIDCSession{Timeout: 3600}.SessionTimeoutSeconds())
	assert.Equal(t, int64(604800), OIDCSession{}.SessionTimeoutSeconds())
	assert.Equal(t, int64(604800), OIDCSession{Timeout: -1}.SessionTimeoutSeconds())
}
