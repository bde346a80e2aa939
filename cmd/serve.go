package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalite/kalite/pkg/cache"
	"github.com/kalite/kalite/pkg/config"
	"github.com/kalite/kalite/pkg/logger"
	"github.com/kalite/kalite/pkg/server"
	"github.com/kalite/kalite/pkg/videos"
)

func ServeCommand() *cobra.Command {
	var listen string

	command := &cobra.Command{
		Use:   "serve",
		Short: "Serve topic tree pages",
		Long:  `Serve topic, video, exercise and search pages as JSON, refreshing cached video counts as pages are requested.`,
		Example: `  kalite serve
  kalite serve --listen 127.0.0.1:8080`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	command.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from config)")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		initCore(true)
		log := logger.GetLogger("serve")

		if listen == "" {
			listen = config.Config.Server.Listen
		}

		tree := loadTree()
		stamper := videos.NewStamper(
			config.Config.Paths.ContentDir,
			config.Config.Paths.ContentURL,
			config.Config.Server.BackupVideoSource,
		)

		srv := server.New(tree, cache.New(tree, stamper), server.Options{
			BackupVideos: stamper.HasBackup(),
			Indexer:      stamper,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if config.Config.Server.Watch {
			go func() {
				if err := srv.Watch(ctx); err != nil {
					log.WithError(err).Warn("Failed watching topic tree, use POST /api/reload after imports")
				}
			}()
		}

		if err := srv.ListenAndServe(ctx, listen); err != nil {
			log.WithError(err).Fatal("Server failed")
		}

		log.Info("Server exited")
		return nil
	}

	return command
}
