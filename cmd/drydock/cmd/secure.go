package cmd

import (
	"github.com/spf13/cobra"

	"drydock/internal/output"
	"drydock/internal/secure"
)

var secureCmd = &cobra.Command{
	Use:   "secure <certificate-arn>",
	Short: "Enable HTTPS with an ACM certificate and Route 53 DNS",
	Long: `Creates the HTTPS listener from the given ACM certificate, opens port
443 on the load balancer's security groups, and points a CNAME at the
balancer in the hosted zone matching the certificate domain.`,
	Args: cobra.ExactArgs(1),
	Run:  secureRun,
}

func init() {
	rootCmd.AddCommand(secureCmd)
}

func secureRun(cmd *cobra.Command, args []string) {
	cfg, err := loadProject()
	if err != nil {
		output.Fatal("failed to load configuration: %v", err)
	}
	clients, err := newClients(cmd.Context(), cfg)
	if err != nil {
		output.Fatal("failed to initialize AWS clients: %v", err)
	}

	securer := secure.New(clients, cfg.ProjectName)
	if err := securer.EnableHTTPS(cmd.Context(), cfg.Application.Environment, args[0]); err != nil {
		output.Fatal("failed to enable HTTPS: %v", err)
	}
}
