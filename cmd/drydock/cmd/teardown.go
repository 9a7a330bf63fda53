package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"drydock/internal/deploy"
	"drydock/internal/output"
)

var teardownYes bool

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Terminate the environment and remove its resources",
	Long: `Terminates the Elastic Beanstalk environment. When no other
environments remain in the region, the IAM roles, instance profile,
application, artifact bucket, and generated EB CLI configuration are
removed too.`,
	Args: cobra.NoArgs,
	Run:  teardownRun,
}

func init() {
	teardownCmd.Flags().BoolVarP(&teardownYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(teardownCmd)
}

func teardownRun(cmd *cobra.Command, args []string) {
	cfg, err := loadProject()
	if err != nil {
		output.Fatal("failed to load configuration: %v", err)
	}

	if !teardownYes {
		prompt := fmt.Sprintf("This will terminate environment %s and delete its resources. Continue?",
			cfg.Application.Environment)
		if !output.Confirm(prompt) {
			output.Info("Teardown cancelled")
			return
		}
	}

	clients, err := newClients(cmd.Context(), cfg)
	if err != nil {
		output.Fatal("failed to initialize AWS clients: %v", err)
	}

	noSecret := deploy.SecretSource(func(context.Context) (string, error) { return "", nil })
	if err := deploy.NewDeployer(clients, cfg, noSecret).Teardown(cmd.Context()); err != nil {
		output.Fatal("teardown failed: %v", err)
	}
}
