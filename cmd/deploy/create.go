package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"edgecored/internal/ipcclient"
)

var (
	optGroup  string
	optAdd    []string
	optRemove []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a local deployment request to a running supervisor",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCreate(); err != nil {
			fmt.Println(err)
		}
	},
}

func runCreate() error {
	if optGroup == "" {
		return fmt.Errorf("--group is required")
	}
	adds, err := parseAdds(optAdd)
	if err != nil {
		return err
	}

	cfg := ipcclient.DefaultConfig("edgecored")
	if !ipcclient.IsRunning(cfg) {
		return fmt.Errorf("no running edgecored supervisor found at %s://%s", cfg.Network, cfg.Address)
	}
	client := ipcclient.New(cfg)

	id, err := client.CreateLocalDeployment(context.Background(), ipcclient.CreateLocalDeploymentRequest{
		GroupName:                  optGroup,
		RootComponentVersionsToAdd: adds,
		RootComponentsToRemove:     optRemove,
	})
	if err != nil {
		return fmt.Errorf("create deployment: %w", err)
	}
	fmt.Printf("deploymentId: %s\n", id)
	return nil
}

// parseAdds parses "name=version" flag values into a map.
func parseAdds(raw []string) (map[string]string, error) {
	out := map[string]string{}
	for _, entry := range raw {
		name, version, ok := strings.Cut(entry, "=")
		if !ok || name == "" || version == "" {
			return nil, fmt.Errorf("invalid --add value %q, expected name=version", entry)
		}
		out[name] = version
	}
	return out, nil
}

func init() {
	deployCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&optGroup, "group", "g", "", "deployment group name")
	createCmd.Flags().StringArrayVar(&optAdd, "add", nil, "root component to add, as name=version (repeatable)")
	createCmd.Flags().StringArrayVar(&optRemove, "remove", nil, "root component name to remove (repeatable)")
}
