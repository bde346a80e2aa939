package content

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalite/kalite/pkg/regex"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// Normalizer strips a leading ordinal ("1. Intro" -> "Intro") from names.
type Normalizer struct {
	numbering *regex.Pattern
}

func NewNormalizer(pattern string) (*Normalizer, error) {
	p, err := regex.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("numbering pattern: %w", err)
	}
	return &Normalizer{numbering: p}, nil
}

// Basename returns the base name of name with its numbering prefix removed.
func (n *Normalizer) Basename(name string) string {
	base := filepath.Base(name)
	if stripped, ok, err := regex.Submatch(base, n.numbering, 1); err == nil && ok && stripped != "" {
		return stripped
	}
	return base
}

func Slugify(s string) string {
	return slug.Make(s)
}

// HumanizeName turns a file or directory name into a display title.
func HumanizeName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	return titleCaser.String(strings.Join(words, " "))
}

// splitExt returns the stem and the lower-cased extension of name.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), strings.ToLower(ext)
}

// ancestorIDs lists the non-empty segments of a topic path.
func ancestorIDs(path string) []string {
	var ids []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// lastID is the final segment of a topic path, empty for the root.
func lastID(path string) string {
	ids := ancestorIDs(path)
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}
