package component

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"edgecored/internal/ipcclient"
)

var detailsCmd = &cobra.Command{
	Use:   "details <name>",
	Short: "Show a single component's version and state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := showDetails(args[0]); err != nil {
			fmt.Println(err)
		}
	},
}

func showDetails(name string) error {
	client := ipcclient.New(ipcclient.DefaultConfig("edgecored"))
	detail, err := client.GetComponentDetails(context.Background(), name)
	if err != nil {
		return fmt.Errorf("get component details: %w", err)
	}
	fmt.Printf("Name: %s\nVersion: %s\nState: %s\n", detail.Name, detail.Version, detail.State)
	return nil
}

func init() {
	componentCmd.AddCommand(detailsCmd)
}
