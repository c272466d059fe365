package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "edgecored/docs"

	"edgecored/cmd/root"
	"edgecored/internal/config"
	"edgecored/internal/deployment"
	"edgecored/internal/depresolver"
	"edgecored/internal/fetcher"
	"edgecored/internal/ipcserver"
	"edgecored/internal/logger"
	"edgecored/internal/merger"
	"edgecored/internal/metrics"
	"edgecored/internal/middleware"
	"edgecored/internal/model"
	"edgecored/internal/store"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the supervisor daemon",
	Run: func(cmd *cobra.Command, args []string) {
		if err := startServer(context.Background()); err != nil {
			log.Fatal(err)
		}
	},
}

func startServer(ctx context.Context) error {
	cfg := &config.Config

	artifactFetcher := fetcher.New(cfg.Fetch.BaseUrl)
	componentStore := store.New(filepath.Join(cfg.Directory.Root, "packages"), artifactFetcher)
	resolver := depresolver.New(componentStore, nil)
	deploymentsRoot := filepath.Join(cfg.Directory.Root, "deployments")
	dirs := deployment.NewDirectoryManager(deploymentsRoot)
	procController := deployment.NewProcController(func(name, version string) string {
		id, err := model.NewComponentIdentifier(name, version)
		if err != nil {
			return ""
		}
		return componentStore.DecompressedDir(id)
	}, 3)

	lifecycleMerger := &merger.Merger{
		Controller: procController,
		Store:      componentStore,
		Snapshots:  &merger.FileSnapshotStore{Dir: deploymentsRoot},
		Broker:     merger.NewBroker(),
		Bootstrap:  &merger.BootstrapStore{Dir: deploymentsRoot},
	}

	groupRoots := &deployment.GroupRootsStore{Dir: cfg.Directory.Root}
	orchestrator, err := deployment.New(resolver, componentStore, lifecycleMerger, dirs, nil, groupRoots)
	if err != nil {
		return fmt.Errorf("construct orchestrator: %w", err)
	}
	if cfg.Deployment.DefaultDeadlineSeconds > 0 {
		orchestrator.DefaultDeadline = time.Duration(cfg.Deployment.DefaultDeadlineSeconds) * time.Second
	}
	go orchestrator.Run(ctx)

	if cfg.Metrics.Pushgateway != "" {
		go metrics.PushLoop(ctx, cfg.Metrics.Pushgateway, "edgecored", 30*time.Second)
	}

	router := gin.Default()
	router.Use(middleware.MetricsMiddleware())
	ipcServer := &ipcserver.Server{
		Orchestrator: orchestrator,
		Controller:   procController,
		Store:        componentStore,
		Broker:       lifecycleMerger.Broker,
		Components:   func() []ipcserver.ComponentSummary { return toIPCSummaries(orchestrator.ComponentSummaries()) },
	}
	ipcServer.RegisterRoutes(router)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	listeners, err := CreateListeners([]ListenAddr{{Network: cfg.Server.Network, Address: cfg.Server.Address}})
	if err != nil {
		return fmt.Errorf("create listener: %w", err)
	}
	logger.Infof("edgecored listening on %s://%s", cfg.Server.Network, cfg.Server.Address)
	return router.RunListener(listeners[0])
}

func toIPCSummaries(in []deployment.ComponentSummary) []ipcserver.ComponentSummary {
	out := make([]ipcserver.ComponentSummary, 0, len(in))
	for _, c := range in {
		out = append(out, ipcserver.ComponentSummary{
			Name:          c.Name,
			Version:       c.Version,
			State:         c.State,
			Configuration: c.Configuration,
		})
	}
	return out
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
}
