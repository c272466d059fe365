package component

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"edgecored/internal/ipcclient"
)

var restartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart a component's supervised process",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := ipcclient.New(ipcclient.DefaultConfig("edgecored"))
		if err := client.RestartComponent(context.Background(), args[0]); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("component '%s' restarted\n", args[0])
	},
}

func init() {
	componentCmd.AddCommand(restartCmd)
}
