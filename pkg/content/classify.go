package content

import (
	"strings"

	"github.com/kalite/kalite/pkg/config"
	"github.com/kalite/kalite/pkg/topictree"
)

// Classifier maps a file name to the kind of leaf it becomes.
type Classifier interface {
	KindByExtension(name string) (topictree.Kind, bool)
}

// ExtensionClassifier classifies by lower-cased file extension.
type ExtensionClassifier map[string]topictree.Kind

func NewExtensionClassifier(kinds config.KindsConfiguration) ExtensionClassifier {
	c := make(ExtensionClassifier, len(kinds.Video)+len(kinds.Exercise))
	for _, ext := range kinds.Video {
		c[normalizeExt(ext)] = topictree.KindVideo
	}
	for _, ext := range kinds.Exercise {
		c[normalizeExt(ext)] = topictree.KindExercise
	}
	return c
}

func (c ExtensionClassifier) KindByExtension(name string) (topictree.Kind, bool) {
	_, ext := splitExt(name)
	kind, ok := c[ext]
	return kind, ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
