package videos

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/kalite/kalite/pkg/logger"
	"github.com/kalite/kalite/pkg/paths"
	"github.com/kalite/kalite/pkg/topictree"
)

const (
	defaultFormat    = "default"
	defaultExtension = ".mp4"
	thumbnailExt     = ".png"
)

// Stamper knows which content files exist locally and derives video
// availability and counts from that.
type Stamper struct {
	contentDir   string
	contentURL   string
	backupSource string

	mu    sync.RWMutex
	files *strset.Set
	log   *logrus.Entry
}

func NewStamper(contentDir string, contentURL string, backupSource string) *Stamper {
	s := &Stamper{
		contentDir:   contentDir,
		contentURL:   contentURL,
		backupSource: backupSource,
		log:          logger.GetLogger("videos"),
	}
	s.Rescan()
	return s
}

// Rescan rebuilds the set of files present in the content directory.
func (s *Stamper) Rescan() int {
	found, size := paths.InFolder(s.contentDir, true, false, nil)

	files := strset.New()
	for _, p := range found {
		files.Add(p.FileName)
	}

	s.mu.Lock()
	s.files = files
	s.mu.Unlock()

	s.log.Debugf("Indexed %d content files (%d bytes) in %q", files.Size(), size, s.contentDir)
	return files.Size()
}

// HasBackup reports whether videos missing locally can be streamed elsewhere.
func (s *Stamper) HasBackup() bool {
	return s.backupSource != ""
}

// StampURLs sets on_disk, urls and available on a video, unless already
// stamped and not forced.
func (s *Stamper) StampURLs(video *topictree.Node, force bool) {
	if video.Kind != topictree.KindVideo || (!force && video.URLs != nil) {
		return
	}

	filename := videoFilename(video)
	base := strings.TrimSuffix(filename, path.Ext(filename))

	s.mu.RLock()
	onDisk := s.files.Has(filename)
	hasThumb := s.files.Has(base + thumbnailExt)
	s.mu.RUnlock()

	u := topictree.VideoURL{OnDisk: onDisk}
	switch {
	case onDisk:
		u.StreamURL = s.contentURL + filename
		if hasThumb {
			u.ThumbnailURL = s.contentURL + base + thumbnailExt
		}
	case s.HasBackup() && video.YoutubeID != "":
		u.StreamURL = fmt.Sprintf(s.backupSource, video.YoutubeID)
	}

	video.OnDisk = onDisk
	video.URLs = map[string]topictree.VideoURL{defaultFormat: u}
	video.Available = u.StreamURL != ""
}

// CountVideos computes nvideos_local and nvideos_known for topic and any
// descendant topic whose counts are missing (or all of them when forced).
// It reports whether topic's previously cached counts changed.
func (s *Stamper) CountVideos(topic *topictree.Node, force bool) bool {
	local, known := 0, 0

	for _, ch := range topic.Children {
		switch ch.Kind {
		case topictree.KindTopic:
			if force || !ch.HasCounts() {
				s.CountVideos(ch, force)
			}
			local += *ch.NVideosLocal
			known += *ch.NVideosKnown
		case topictree.KindVideo:
			s.StampURLs(ch, force)
			if ch.OnDisk {
				local++
			}
			known++
		}
	}

	changed := (topic.NVideosLocal != nil && *topic.NVideosLocal != local) ||
		(topic.NVideosKnown != nil && *topic.NVideosKnown != known)

	topic.SetCounts(local, known)
	topic.Available = local > 0

	if changed {
		s.log.Debugf("Video counts changed for %s: %d local / %d known", topic.Path, local, known)
	}
	return changed
}

// videoFilename is the content file a video is served from.
func videoFilename(video *topictree.Node) string {
	if video.UniqueFilename != "" {
		return video.UniqueFilename
	}
	return video.YoutubeID + defaultExtension
}
