package authgate

import (
	"strings"

	"drydock/internal/config"
	apperrors "drydock/internal/errors"
)

// PromptFunc reads a secret interactively without echoing it.
type PromptFunc func(prompt string) (string, error)

// ResolveSecret returns the OIDC client secret, trying in order: the
// command-line value, the LB_OIDC_CLIENT_SECRET environment variable,
// its legacy OIDC_CLIENT_SECRET spelling, and finally an interactive
// prompt. The secret is never written to configuration or logs.
func ResolveSecret(flagValue string, lookup config.LookupFunc, prompt PromptFunc) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if secret, ok := config.LookupOIDCVar(config.EnvOIDCClientSecret, lookup); ok {
		return secret, nil
	}

	secret, err := prompt("Please enter your OIDC client secret")
	if err != nil {
		return "", apperrors.Configuration("reading OIDC client secret", err)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", apperrors.Configuration("OIDC client secret is required", nil)
	}
	return secret, nil
}
