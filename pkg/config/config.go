package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/kalite/kalite/pkg/logger"
)

const envPrefix = "KALITE_"

type Configuration struct {
	Paths   PathsConfiguration   `koanf:"paths"`
	Kinds   KindsConfiguration   `koanf:"kinds"`
	Import  ImportConfiguration  `koanf:"import"`
	Orphans OrphansConfiguration `koanf:"orphans"`
	Server  ServerConfiguration  `koanf:"server"`
}

var (
	Config *Configuration
	K      = koanf.New(".")

	log = logger.GetLogger("config")
)

// defaults mirror a stock KA Lite install layout relative to the working directory.
var defaults = map[string]interface{}{
	"paths.data_dir":          "data",
	"paths.topics_file":       "topics.json",
	"paths.content_dir":       "content",
	"paths.local_content_dir": filepath.Join("data", "local_content"),
	"paths.content_url":       "/content/",

	"kinds.video":    []string{".mp4", ".m4v", ".webm", ".ogv", ".ogg", ".mov", ".avi", ".flv", ".mkv"},
	"kinds.exercise": []string{".html", ".htm"},

	"import.numbering": `^[0-9]+\.?\s+(.*)$`,
	"import.ignore":    []string{`Name startsWith "."`},

	"orphans.grace_period": "10m",

	"server.listen":              ":8008",
	"server.backup_video_source": "",
	"server.watch":               true,
}

/* Public */

// Init loads defaults, then the yaml file at configFilePath (if it exists),
// then KALITE_ prefixed environment variables. KALITE_PATHS__CONTENT_DIR
// maps to paths.content_dir.
func Init(configFilePath string) error {
	if err := K.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err == nil {
			if err := K.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
				return fmt.Errorf("load config file %q: %w", configFilePath, err)
			}
			log.Debugf("Loaded config file: %q", configFilePath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat config file %q: %w", configFilePath, err)
		} else {
			log.Debugf("Config file not found, using defaults: %q", configFilePath)
		}
	}

	if err := K.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	cfg := &Configuration{}
	if err := K.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	Config = cfg
	return nil
}

// Validate checks the settings every command depends on.
func (c *Configuration) Validate() error {
	switch {
	case c.Paths.DataDir == "":
		return fmt.Errorf("paths.data_dir must be set")
	case c.Paths.TopicsFile == "":
		return fmt.Errorf("paths.topics_file must be set")
	case c.Paths.ContentDir == "":
		return fmt.Errorf("paths.content_dir must be set")
	case c.Paths.LocalContentDir == "":
		return fmt.Errorf("paths.local_content_dir must be set")
	case len(c.Kinds.Video) == 0 && len(c.Kinds.Exercise) == 0:
		return fmt.Errorf("kinds must map at least one extension")
	}

	return nil
}

// GetDefaultConfigDirectory returns the folder next to the executable when it
// already holds filename, otherwise the per-user config folder for app.
func GetDefaultConfigDirectory(app string, filename string) string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if _, err := os.Stat(filepath.Join(dir, filename)); err == nil {
			return dir
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}

	return "."
}

type PathsConfiguration struct {
	DataDir         string `koanf:"data_dir"`
	TopicsFile      string `koanf:"topics_file"`
	ContentDir      string `koanf:"content_dir"`
	LocalContentDir string `koanf:"local_content_dir"`
	ContentURL      string `koanf:"content_url"`
}

// TopicsPath is the full path of the persisted topic tree.
func (p PathsConfiguration) TopicsPath() string {
	return filepath.Join(p.DataDir, p.TopicsFile)
}

type KindsConfiguration struct {
	Video    []string `koanf:"video"`
	Exercise []string `koanf:"exercise"`
}

type ImportConfiguration struct {
	// Numbering matches a leading ordinal ("1. Intro") and captures the rest.
	Numbering string `koanf:"numbering"`
	// Ignore expressions are evaluated against every source file; a match skips it.
	Ignore []string `koanf:"ignore"`
}

type OrphansConfiguration struct {
	GracePeriod time.Duration `koanf:"grace_period"`
	IgnorePaths []string      `koanf:"ignore_paths"`
}

type ServerConfiguration struct {
	Listen string `koanf:"listen"`
	// BackupVideoSource is a format string taking the youtube id, e.g.
	// "http://example.org/videos/%s.mp4". Empty disables the fallback.
	BackupVideoSource string `koanf:"backup_video_source"`
	// Watch reloads the topic tree when another process rewrites it.
	Watch bool `koanf:"watch"`
}
