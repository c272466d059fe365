package cmd

import (
	_ "edgecored/cmd/component"
	_ "edgecored/cmd/deploy"
	_ "edgecored/cmd/metrics"
	_ "edgecored/cmd/root"
	_ "edgecored/cmd/server"
)
