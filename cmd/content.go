package cmd

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kalite/kalite/pkg/config"
	"github.com/kalite/kalite/pkg/content"
	"github.com/kalite/kalite/pkg/logger"
)

func ContentCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "content",
		Short: "Manage locally imported content",
		Long:  `Import content bundles into the topic tree, remove them again, or sweep orphaned content files.`,
	}

	command.AddCommand(contentAddCommand())
	command.AddCommand(contentRemoveCommand())
	command.AddCommand(contentOrphansCommand())

	return command
}

func newManager() *content.Manager {
	tree := loadTree()

	m, err := content.New(
		tree,
		content.NewExtensionClassifier(config.Config.Kinds),
		content.SettingsFromConfig(config.Config, FlagDryRun),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed initializing content manager")
	}
	return m
}

func contentAddCommand() *cobra.Command {
	opts := content.AddOptions{}

	command := &cobra.Command{
		Use:   "add",
		Short: "Import a content bundle into the topic tree",
		Long:  `Import a directory of videos and exercises as a new topic beneath an existing topic.`,
		Example: `  kalite content add -d /media/usb/bundle -p /math/ -c -f bundle.json
  kalite content add -d ./lectures -p /science/ -m -f lectures.json -e "Open University" -l "CC BY-SA"`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	command.Flags().StringVarP(&opts.Location, "directory-location", "d", "", "Directory holding the content bundle")
	command.Flags().StringVarP(&opts.ParentPath, "parent-path", "p", "", "Topic tree path to import beneath")
	command.Flags().BoolVarP(&opts.Copy, "copy", "c", false, "Copy files into the content directory")
	command.Flags().BoolVarP(&opts.Move, "move", "m", false, "Move files into the content directory")
	command.Flags().StringVarP(&opts.FileName, "file-name", "f", "", "Name of the manifest to write")
	command.Flags().StringVarP(&opts.Entity, "entity", "e", "", "Entity the content is attributed to")
	command.Flags().StringVarP(&opts.License, "license", "l", "", "License of the content")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		initCore(true)
		log := logger.GetLogger("content")
		start := time.Now()

		m := newManager()
		res, err := m.Add(cmd.Context(), opts)
		if err != nil {
			if content.IsCommandError(err) {
				return err
			}
			log.WithError(err).Fatal("Failed importing content")
		}

		log.WithField("size", humanize.IBytes(res.Bytes)).
			Infof("Finished importing %s in %s", res.Node.Path, time.Since(start).Round(time.Millisecond))
		return nil
	}

	return command
}

func contentRemoveCommand() *cobra.Command {
	var fileName string

	command := &cobra.Command{
		Use:   "remove",
		Short: "Remove an imported content bundle",
		Long:  `Detach the topic recorded in a manifest from the topic tree and delete its video files and the manifest.`,
		Example: `  kalite content remove -f bundle.json
  kalite content remove -f bundle.json --dry-run`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	command.Flags().StringVarP(&fileName, "file-name", "f", "", "Name of the manifest to remove")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		initCore(true)
		log := logger.GetLogger("content")

		m := newManager()
		res, err := m.Remove(fileName)
		if err != nil {
			if content.IsCommandError(err) {
				return err
			}
			log.WithError(err).Fatal("Failed removing content")
		}

		if res.FileFailures > 0 {
			log.Warnf("%d video files could not be deleted", res.FileFailures)
		}
		return nil
	}

	return command
}

func contentOrphansCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "orphans",
		Short: "Remove content files no longer referenced by the topic tree",
		Long:  `Find files in the content directory that no topic tree leaf references and remove them once they are older than the grace period.`,
		Example: `  kalite content orphans
  kalite content orphans --dry-run`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		initCore(true)
		log := logger.GetLogger("orphans")
		start := time.Now()

		m := newManager()
		res := m.Orphans(content.OrphanOptions{
			GracePeriod: config.Config.Orphans.GracePeriod,
			IgnorePaths: config.Config.Orphans.IgnorePaths,
		})

		log.Infof("Finished in %s: %d removed, %d failed", time.Since(start).Round(time.Millisecond), res.Removed, res.Failures)
		return nil
	}

	return command
}
