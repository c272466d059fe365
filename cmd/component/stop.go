package component

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"edgecored/internal/ipcclient"
)

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a component's supervised process",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := ipcclient.New(ipcclient.DefaultConfig("edgecored"))
		if err := client.StopComponent(context.Background(), args[0]); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("component '%s' stopped\n", args[0])
	},
}

func init() {
	componentCmd.AddCommand(stopCmd)
}
