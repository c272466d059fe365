package metrics

import (
	"fmt"

	"github.com/spf13/cobra"

	"edgecored/cmd/root"
	"edgecored/internal/config"
	"edgecored/internal/metrics"
)

var pushGatewayAddr string

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&pushGatewayAddr, "addr", "a", "", "pushgateway address")
}

var Cmd = &cobra.Command{
	Use:   "metrics",
	Short: "Push deployment/restart metrics to a Prometheus pushgateway once",
	Run: func(cmd *cobra.Command, args []string) {
		addr := pushGatewayAddr
		if addr == "" {
			addr = config.Config.Metrics.Pushgateway
		}
		if addr == "" {
			fmt.Println("no pushgateway address configured; pass --addr or set metrics.pushgateway")
			return
		}
		if err := metrics.Push(addr, "edgecored"); err != nil {
			fmt.Printf("metrics push failed: %v\nplease check that the pushgateway address is correct and reachable\n", err)
			return
		}
		fmt.Printf("pushed metrics to %s\n", addr)
	},
}
