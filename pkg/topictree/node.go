package topictree

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/scylladb/go-set/strset"
)

type Kind int

const (
	KindTopic Kind = iota + 1
	KindVideo
	KindExercise
)

var kindNames = map[Kind]string{
	KindTopic:    "Topic",
	KindVideo:    "Video",
	KindExercise: "Exercise",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind: %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown node kind: %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// License is the attribution metadata stored under the root "licenses" map.
type License struct {
	Entity  string `json:"entity"`
	License string `json:"license"`
}

type VideoURL struct {
	OnDisk       bool   `json:"on_disk"`
	StreamURL    string `json:"stream_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Node is a topic, video or exercise in the topic tree. Topic-only fields are
// left zero on leaves and vice versa.
type Node struct {
	Kind        Kind
	ID          string
	Slug        string
	Title       string
	Path        string
	Description string
	ParentID    string
	AncestorIDs []string
	Hide        bool
	Attribution string
	Available   bool

	// topics
	Children     []*Node
	Contains     *strset.Set
	Attributions *strset.Set
	NVideosLocal *int
	NVideosKnown *int
	Licenses     map[string]License

	// leaves
	YoutubeID      string
	ContentType    string
	UniqueFilename string
	URLs           map[string]VideoURL
	OnDisk         bool

	// Extra holds fields this package does not model, kept for round trips.
	Extra map[string]json.RawMessage

	parent *Node
}

func (n *Node) IsTopic() bool {
	return n.Kind == KindTopic
}

func (n *Node) Parent() *Node {
	return n.parent
}

// HasCounts reports whether the cached video counts are present.
func (n *Node) HasCounts() bool {
	return n.NVideosLocal != nil && n.NVideosKnown != nil
}

func (n *Node) SetCounts(local, known int) {
	n.NVideosLocal = &local
	n.NVideosKnown = &known
}

func (n *Node) ClearCounts() {
	n.NVideosLocal = nil
	n.NVideosKnown = nil
}

// HasGrandchildren reports whether any child is itself a topic.
func (n *Node) HasGrandchildren() bool {
	for _, ch := range n.Children {
		if ch.IsTopic() {
			return true
		}
	}
	return false
}

// ChildrenOfKind returns the direct children of the given kind.
func (n *Node) ChildrenOfKind(kind Kind) []*Node {
	var out []*Node
	for _, ch := range n.Children {
		if ch.Kind == kind {
			out = append(out, ch)
		}
	}
	return out
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, ch := range n.Children {
		ch.Walk(fn)
	}
}

// Update overwrites n with the fields carried by from, keeping anything from
// does not set: cached counts, urls and unknown fields.
func (n *Node) Update(from *Node) {
	n.Kind = from.Kind
	n.ID = from.ID
	n.Slug = from.Slug
	n.Title = from.Title
	n.Path = from.Path
	n.Description = from.Description
	n.ParentID = from.ParentID
	n.AncestorIDs = from.AncestorIDs
	n.Hide = from.Hide
	n.Attribution = from.Attribution

	if from.IsTopic() {
		n.Children = from.Children
		for _, ch := range n.Children {
			ch.parent = n
		}
		n.Contains = from.Contains
		n.Attributions = from.Attributions
	}

	if from.YoutubeID != "" {
		n.YoutubeID = from.YoutubeID
	}
	if from.ContentType != "" {
		n.ContentType = from.ContentType
	}
	if from.UniqueFilename != "" {
		n.UniqueFilename = from.UniqueFilename
	}
	if len(from.Licenses) > 0 {
		if n.Licenses == nil {
			n.Licenses = make(map[string]License, len(from.Licenses))
		}
		for k, v := range from.Licenses {
			n.Licenses[k] = v
		}
	}

	for k, v := range from.Extra {
		if n.Extra == nil {
			n.Extra = make(map[string]json.RawMessage, len(from.Extra))
		}
		n.Extra[k] = v
	}
}

/* JSON */

type nodeJSON struct {
	Kind           Kind                `json:"kind"`
	ID             string              `json:"id"`
	Slug           string              `json:"slug"`
	Title          string              `json:"title"`
	Path           string              `json:"path"`
	Description    string              `json:"description,omitempty"`
	ParentID       string              `json:"parent_id,omitempty"`
	AncestorIDs    []string            `json:"ancestor_ids,omitempty"`
	Hide           bool                `json:"hide,omitempty"`
	Attribution    string              `json:"attribution,omitempty"`
	Available      bool                `json:"available"`
	Children       *[]*Node            `json:"children,omitempty"`
	Contains       []string            `json:"contains,omitempty"`
	Attributions   []string            `json:"attributions,omitempty"`
	NVideosLocal   *int                `json:"nvideos_local,omitempty"`
	NVideosKnown   *int                `json:"nvideos_known,omitempty"`
	Licenses       map[string]License  `json:"licenses,omitempty"`
	YoutubeID      string              `json:"youtube_id,omitempty"`
	ContentType    string              `json:"content_type,omitempty"`
	UniqueFilename string              `json:"unique_filename,omitempty"`
	URLs           map[string]VideoURL `json:"urls,omitempty"`
	OnDisk         *bool               `json:"on_disk,omitempty"`
}

var knownFields = []string{
	"kind", "id", "slug", "title", "path", "description", "parent_id", "ancestor_ids",
	"hide", "attribution", "available", "children", "contains", "attributions",
	"nvideos_local", "nvideos_known", "licenses", "youtube_id", "content_type",
	"unique_filename", "urls", "on_disk",
}

func sortedList(s *strset.Set) []string {
	if s == nil || s.IsEmpty() {
		return nil
	}
	l := s.List()
	sort.Strings(l)
	return l
}

func (n *Node) MarshalJSON() ([]byte, error) {
	w := nodeJSON{
		Kind:           n.Kind,
		ID:             n.ID,
		Slug:           n.Slug,
		Title:          n.Title,
		Path:           n.Path,
		Description:    n.Description,
		ParentID:       n.ParentID,
		AncestorIDs:    n.AncestorIDs,
		Hide:           n.Hide,
		Attribution:    n.Attribution,
		Available:      n.Available,
		Contains:       sortedList(n.Contains),
		Attributions:   sortedList(n.Attributions),
		NVideosLocal:   n.NVideosLocal,
		NVideosKnown:   n.NVideosKnown,
		Licenses:       n.Licenses,
		YoutubeID:      n.YoutubeID,
		ContentType:    n.ContentType,
		UniqueFilename: n.UniqueFilename,
		URLs:           n.URLs,
	}

	// only videos are stamped
	if n.Kind == KindVideo {
		onDisk := n.OnDisk
		w.OnDisk = &onDisk
	}

	if n.IsTopic() {
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		w.Children = &children
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	if len(n.Extra) == 0 {
		return b, nil
	}

	fields := make(map[string]json.RawMessage, len(knownFields)+len(n.Extra))
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, v := range n.Extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}

	return json.Marshal(fields)
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var w nodeJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(fields, k)
	}

	*n = Node{
		Kind:           w.Kind,
		ID:             w.ID,
		Slug:           w.Slug,
		Title:          w.Title,
		Path:           w.Path,
		Description:    w.Description,
		ParentID:       w.ParentID,
		AncestorIDs:    w.AncestorIDs,
		Hide:           w.Hide,
		Attribution:    w.Attribution,
		Available:      w.Available,
		NVideosLocal:   w.NVideosLocal,
		NVideosKnown:   w.NVideosKnown,
		Licenses:       w.Licenses,
		YoutubeID:      w.YoutubeID,
		ContentType:    w.ContentType,
		UniqueFilename: w.UniqueFilename,
		URLs:           w.URLs,
	}

	if w.OnDisk != nil {
		n.OnDisk = *w.OnDisk
	}

	if w.Children != nil {
		n.Children = *w.Children
	}
	if n.IsTopic() {
		n.Contains = strset.New(w.Contains...)
		n.Attributions = strset.New(w.Attributions...)
	}
	if len(fields) > 0 {
		n.Extra = fields
	}

	return nil
}
