/*
Copyright © 2022 zbc <zbc@sangfor.com.cn>
*/
package component

import (
	"edgecored/cmd/root"

	"github.com/spf13/cobra"
)

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Component operations (list/details/restart/stop)",
	Long:  `Component operations (list/details/restart/stop)`,
}

const componentExample = `  # inspect and control components on a running supervisor
  edgecored component list
  edgecored component details RedSignal
  edgecored component restart RedSignal
  edgecored component stop RedSignal`

func init() {
	root.RootCmd.AddCommand(componentCmd)

	componentCmd.Example = componentExample
}
