package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"drydock/internal/authgate"
	"drydock/internal/config"
	"drydock/internal/deploy"
	"drydock/internal/output"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create or update the Elastic Beanstalk environment",
	Long: `Bundles the project respecting .ebignore, uploads it, ensures the IAM
roles and instance profile exist, and converges the environment on the
new version. An existing OIDC listener configuration survives the
update.`,
	Args: cobra.NoArgs,
	Run:  deployRun,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func deployRun(cmd *cobra.Command, args []string) {
	cfg, err := loadProject()
	if err != nil {
		output.Fatal("failed to load configuration: %v", err)
	}
	clients, err := newClients(cmd.Context(), cfg)
	if err != nil {
		output.Fatal("failed to initialize AWS clients: %v", err)
	}

	// Consulted only when a preserved OIDC rule must be re-applied.
	secret := deploy.SecretSource(func(context.Context) (string, error) {
		return authgate.ResolveSecret("", config.OSLookup, output.PromptSecret)
	})

	if err := deploy.NewDeployer(clients, cfg, secret).Deploy(cmd.Context()); err != nil {
		output.Fatal("deployment failed: %v", err)
	}
}
