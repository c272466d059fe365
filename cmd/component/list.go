package component

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
	Short: "List every component currently known to the supervisor",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listAllComponents(); err != nil {
			fmt.Println(err)
		}
	},
}

func listAllComponents() error {
	client := ipcclient.New(ipcclient.DefaultConfig("edgecored"))
	components, err := client.ListComponents(context.Background())
	if err != nil {
		return fmt.Errorf("list components: %w", err)
	}
	if len(components) == 0 {
		fmt.Println("No components found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Version", "State"})
	for _, c := range components {
		t.AppendRow(table.Row{c.Name, c.Version, c.State})
	}
	t.Render()
	return nil
}

func init() {
	componentCmd.AddCommand(listCmd)
}
