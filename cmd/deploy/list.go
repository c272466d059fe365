package deploy

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"edgecored/internal/ipcclient"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List local deployment history",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runList(); err != nil {
			fmt.Println(err)
		}
	},
}

func runList() error {
	cfg := ipcclient.DefaultConfig("edgecored")
	client := ipcclient.New(cfg)
	history, err := client.ListLocalDeployments(context.Background())
	if err != nil {
		return fmt.Errorf("list deployments: %w", err)
	}
	if len(history) == 0 {
		fmt.Println("no deployments recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Deployment ID", "Status", "Error"})
	for _, d := range history {
		t.AppendRow(table.Row{d.DeploymentID, d.Status, d.Error})
	}
	t.Render()
	return nil
}

func init() {
	deployCmd.AddCommand(listCmd)
}
