// Package deploy implements the `edgecored deploy` CLI command group:
// create/status/list operations against the Local IPC surface's deployment
// endpoints (spec.md §6), grounded on cmd/component's command-group
// structure (a parent Cobra command plus one file per subcommand).
package deploy

import (
	"edgecored/cmd/root"

	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Local deployment operations (create/status/list)",
	Long:  `Local deployment operations (create/status/list)`,
}

const deployExample = `  # request a root component at a pinned version
  edgecored deploy create --group fleet-a --add RedSignal=1.0.0
  edgecored deploy status <deploymentId>
  edgecored deploy list`

func init() {
	root.RootCmd.AddCommand(deployCmd)
	deployCmd.Example = deployExample
}
