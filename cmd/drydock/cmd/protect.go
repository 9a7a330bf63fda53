package cmd

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"drydock/internal/authgate"
	"drydock/internal/config"
	"drydock/internal/deploy"
	"drydock/internal/output"
)

var protectClientSecret string

var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Require OIDC authentication for all traffic",
	Long: `Rewrites the HTTPS listener so every request authenticates against the
configured identity provider. Unmatched traffic is denied and HTTP is
redirected to HTTPS. OIDC settings come from drydock.yml, overridden by
LB_OIDC_* environment variables; the client secret is taken from the
--client-secret flag, the LB_OIDC_CLIENT_SECRET variable, or a masked
prompt, and is never written to configuration or logs.`,
	Args: cobra.NoArgs,
	Run:  protectRun,
}

func init() {
	protectCmd.Flags().StringVar(&protectClientSecret, "client-secret", "", "OIDC client secret (prefer the LB_OIDC_CLIENT_SECRET environment variable)")
	rootCmd.AddCommand(protectCmd)
}

func protectRun(cmd *cobra.Command, args []string) {
	cfg, err := loadProject()
	if err != nil {
		output.Fatal("failed to load configuration: %v", err)
	}

	var oidc config.OIDCConfig
	if cfg.OIDC != nil {
		oidc = *cfg.OIDC
	}
	oidc = oidc.WithOverrides(config.OSLookup)

	if missing := missingOIDCSettings(oidc); len(missing) > 0 {
		output.Error("Missing OIDC settings: %s", strings.Join(missing, ", "))
		output.Fatal("set them in drydock.yml under oidc: or export the variables above")
	}

	secret, err := authgate.ResolveSecret(protectClientSecret, config.OSLookup, output.PromptSecret)
	if err != nil {
		output.Fatal("failed to resolve OIDC client secret: %v", err)
	}

	clients, err := newClients(cmd.Context(), cfg)
	if err != nil {
		output.Fatal("failed to initialize AWS clients: %v", err)
	}

	resolver := deploy.NewResolver(clients.Beanstalk, clients.ELB)
	gate := authgate.New(clients.ELB, clients.ACM, resolver, cfg.ProjectName)
	if err := gate.Configure(cmd.Context(), cfg.Application.Environment, authgate.FromConfig(oidc), secret); err != nil {
		output.Fatal("failed to configure OIDC authentication: %v", err)
	}
}

// missingOIDCSettings reports the required OIDC settings that are
// empty after merging file values with environment overrides, named by
// their environment variable. The client secret is excluded: it has
// its own resolution chain ending in an interactive prompt.
func missingOIDCSettings(oidc config.OIDCConfig) []string {
	values := map[string]string{
		config.EnvOIDCClientID:         oidc.ClientID,
		config.EnvOIDCIssuer:           oidc.Issuer,
		config.EnvOIDCAuthEndpoint:     oidc.Endpoints.Authorization,
		config.EnvOIDCTokenEndpoint:    oidc.Endpoints.Token,
		config.EnvOIDCUserInfoEndpoint: oidc.Endpoints.UserInfo,
	}
	merged := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok && v != ""
	}

	missing := config.MissingOIDCVars(merged)
	return slices.DeleteFunc(missing, func(name string) bool {
		return name == config.EnvOIDCClientSecret
	})
}
