package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"drydock/internal/aws/client"
	"drydock/internal/config"
	"drydock/internal/constants"
	"drydock/internal/logger"
)

var (
	debug       bool
	stopSignals context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   constants.ProjectName,
	Short: "Deploy applications to Elastic Beanstalk behind OIDC authentication",
	Long: fmt.Sprintf(`%s provisions Elastic Beanstalk environments from a single YAML file
and retrofits OIDC authentication onto the HTTPS listener, so the whole
application sits behind your identity provider without code changes.`, constants.ProjectName),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}
		logger.Initialize(logLevel)

		// Polling loops stop on Ctrl-C through this context.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		stopSignals = stop
		cmd.SetContext(ctx)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if stopSignals != nil {
		stopSignals()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debugging logs")
}

// loadProject loads drydock.yml from the current working directory.
func loadProject() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return config.Load(cwd)
}

// newClients builds the AWS service clients for the configured region.
func newClients(ctx context.Context, cfg *config.Config) (*client.Clients, error) {
	awsCfg, err := client.LoadAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	return client.New(awsCfg), nil
}
