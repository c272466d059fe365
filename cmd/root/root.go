package root

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "edgecored",
	Short: "on-device component orchestrator",
	Long:  `edgecored resolves, fetches, configures and supervises components deployed to this device.`,
}
