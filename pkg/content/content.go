package content

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kalite/kalite/pkg/config"
	"github.com/kalite/kalite/pkg/expression"
	"github.com/kalite/kalite/pkg/logger"
	"github.com/kalite/kalite/pkg/topictree"
)

// CommandError is a precondition failure reported before anything is mutated.
type CommandError struct {
	err error
}

func (e *CommandError) Error() string {
	return e.err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.err
}

func commandErrorf(format string, args ...interface{}) error {
	return &CommandError{err: errors.Errorf(format, args...)}
}

// IsCommandError reports whether err is, or wraps, a CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// Settings are the filesystem locations and import rules a Manager works with.
type Settings struct {
	ContentDir      string
	LocalContentDir string
	TopicsFile      string
	Numbering       string
	Ignore          []string
	DryRun          bool
}

// SettingsFromConfig builds Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Configuration, dryRun bool) Settings {
	return Settings{
		ContentDir:      cfg.Paths.ContentDir,
		LocalContentDir: cfg.Paths.LocalContentDir,
		TopicsFile:      cfg.Paths.TopicsFile,
		Numbering:       cfg.Import.Numbering,
		Ignore:          cfg.Import.Ignore,
		DryRun:          dryRun,
	}
}

// Manager imports content bundles into a topic tree and removes them again.
type Manager struct {
	tree       *topictree.Tree
	classifier Classifier
	normalizer *Normalizer
	ignore     []expression.CompiledExpression
	settings   Settings
	log        *logrus.Entry
}

func New(tree *topictree.Tree, classifier Classifier, settings Settings) (*Manager, error) {
	normalizer, err := NewNormalizer(settings.Numbering)
	if err != nil {
		return nil, err
	}

	ignore, err := expression.Compile(settings.Ignore)
	if err != nil {
		return nil, fmt.Errorf("compile ignore expressions: %w", err)
	}

	return &Manager{
		tree:       tree,
		classifier: classifier,
		normalizer: normalizer,
		ignore:     ignore,
		settings:   settings,
		log:        logger.GetLogger("content"),
	}, nil
}
