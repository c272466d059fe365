package deploy

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"edgecored/internal/ipcclient"
)

var statusCmd = &cobra.Command{
	Use:   "status <deploymentId>",
	Short: "Get a local deployment's current status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStatus(args[0]); err != nil {
			fmt.Println(err)
		}
	},
}

func runStatus(deploymentID string) error {
	cfg := ipcclient.DefaultConfig("edgecored")
	client := ipcclient.New(cfg)
	status, err := client.GetLocalDeploymentStatus(context.Background(), deploymentID)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	fmt.Printf("deploymentId: %s\nstatus: %s\n", status.DeploymentID, status.Status)
	if status.Error != "" {
		fmt.Printf("error: %s\n", status.Error)
	}
	return nil
}

func init() {
	deployCmd.AddCommand(statusCmd)
}
