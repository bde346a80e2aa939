package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/kalite/kalite/pkg/config"
	"github.com/kalite/kalite/pkg/logger"
	"github.com/kalite/kalite/pkg/runtime"
	"github.com/kalite/kalite/pkg/topictree"
)

var (
	// Global flags
	FlagLogLevel     = 0
	FlagConfigFile   = "config.yaml"
	FlagConfigFolder = config.GetDefaultConfigDirectory("kalite", FlagConfigFile)
	FlagLogFile      = "activity.log"
	FlagDryRun       bool

	// Global vars
	log         *logrus.Entry
	initialized bool
)

func initCore(showAppInfo bool) {
	if initialized {
		return
	}

	// set core variables
	if !filepath.IsAbs(FlagConfigFile) {
		FlagConfigFile = filepath.Join(FlagConfigFolder, FlagConfigFile)
	}
	if !filepath.IsAbs(FlagLogFile) {
		FlagLogFile = filepath.Join(FlagConfigFolder, FlagLogFile)
	}

	// init log
	if err := logger.Init(FlagLogLevel, FlagLogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed initializing logger: %v\n", err)
		os.Exit(1)
	}

	log = logger.GetLogger("app")

	// init config
	if err := config.Init(FlagConfigFile); err != nil {
		log.WithError(err).Fatal("Failed initializing config")
	}

	// info
	if showAppInfo {
		log.Infof("Using %s = %s (%s@%s)", "VERSION", runtime.Version, runtime.GitCommit, runtime.Timestamp)
		log.Infof("Using %s = %q", "CONFIG", FlagConfigFile)
		log.Infof("Using %s = %q", "LOG", FlagLogFile)
		log.Infof("Using %s = %q", "TOPICS", config.Config.Paths.TopicsPath())
		if FlagDryRun {
			log.Warn("Dry-run enabled")
		}
	}

	initialized = true
}

func loadTree() *topictree.Tree {
	tree, err := topictree.Load(config.Config.Paths.TopicsPath())
	if err != nil {
		log.WithError(err).Fatal("Failed loading topic tree")
	}
	log.Infof("Loaded topic tree with %d nodes", tree.Len())
	return tree
}
