package server

import (
	"fmt"

	"github.com/kalite/kalite/pkg/regex"
	"github.com/kalite/kalite/pkg/topictree"
)

var tagPattern = regex.MustCompile(`<[^>]*?>`)

const (
	msgVideoMissing = "This video was not found! You can download it by going to the Update page."
	msgVideoBackup  = "Got video content from %s"
)

type TopicSummary struct {
	Title        string `json:"title"`
	Path         string `json:"path"`
	NVideosLocal *int   `json:"nvideos_local"`
	NVideosKnown *int   `json:"nvideos_known"`
}

type TopicContext struct {
	Topic               TopicSummary      `json:"topic"`
	Title               string            `json:"title"`
	Description         string            `json:"description"`
	Videos              []*topictree.Node `json:"videos"`
	Exercises           []*topictree.Node `json:"exercises"`
	Topics              []TopicSummary    `json:"topics"`
	BackupVidsAvailable bool              `json:"backup_vids_available"`
}

type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type VideoContext struct {
	Video               *topictree.Node `json:"video"`
	Title               string          `json:"title"`
	BackupVidsAvailable bool            `json:"backup_vids_available"`
	Messages            []Message       `json:"messages,omitempty"`
}

type ExerciseContext struct {
	Exercise      *topictree.Node   `json:"exercise"`
	Title         string            `json:"title"`
	RelatedVideos []*topictree.Node `json:"related_videos"`
}

type SearchContext struct {
	Title      string                       `json:"title"`
	QueryError string                       `json:"query_error,omitempty"`
	Results    map[string][]*topictree.Node `json:"results"`
	HitMax     map[string]bool              `json:"hit_max"`
	Query      string                       `json:"query"`
	MaxResults int                          `json:"max_results"`
	Category   string                       `json:"category,omitempty"`
}

type KnowledgeMapContext struct {
	Title         string            `json:"title"`
	ExercisePaths map[string]string `json:"exercise_paths"`
}

func summarize(t *topictree.Node) TopicSummary {
	return TopicSummary{
		Title:        t.Title,
		Path:         t.Path,
		NVideosLocal: t.NVideosLocal,
		NVideosKnown: t.NVideosKnown,
	}
}

// liveTopics are the child topics that are not hidden.
func liveTopics(topic *topictree.Node) []TopicSummary {
	out := []TopicSummary{}
	for _, ch := range topic.ChildrenOfKind(topictree.KindTopic) {
		if !ch.Hide {
			out = append(out, summarize(ch))
		}
	}
	return out
}

func (s *Server) topicContext(topic *topictree.Node) TopicContext {
	desc, err := regex.ReplaceAll(topic.Description, tagPattern, "")
	if err != nil {
		s.log.WithError(err).Warnf("Failed stripping tags from description of %s", topic.Path)
	}

	return TopicContext{
		Topic:               summarize(topic),
		Title:               topic.Title,
		Description:         desc,
		Videos:              nonNil(topic.ChildrenOfKind(topictree.KindVideo)),
		Exercises:           nonNil(topic.ChildrenOfKind(topictree.KindExercise)),
		Topics:              liveTopics(topic),
		BackupVidsAvailable: s.opts.BackupVideos,
	}
}

func (s *Server) videoContext(video *topictree.Node) VideoContext {
	ctx := VideoContext{
		Video:               video,
		Title:               video.Title,
		BackupVidsAvailable: s.opts.BackupVideos,
	}

	switch {
	case !video.Available:
		ctx.Messages = append(ctx.Messages, Message{Level: "warning", Text: msgVideoMissing})
	case !video.OnDisk:
		if u, ok := video.URLs["default"]; ok {
			ctx.Messages = append(ctx.Messages, Message{Level: "success", Text: fmt.Sprintf(msgVideoBackup, u.StreamURL)})
		}
	}

	return ctx
}

// relatedVideos are the videos sharing the exercise's topic.
func relatedVideos(exercise *topictree.Node) map[string]*topictree.Node {
	related := map[string]*topictree.Node{}
	if parent := exercise.Parent(); parent != nil {
		for _, v := range parent.ChildrenOfKind(topictree.KindVideo) {
			related["video:"+v.ID] = v
		}
	}
	return related
}

func exerciseContext(exercise *topictree.Node, related map[string]*topictree.Node) ExerciseContext {
	ctx := ExerciseContext{
		Exercise:      exercise,
		Title:         exercise.Title,
		RelatedVideos: []*topictree.Node{},
	}

	// keep tree order
	if parent := exercise.Parent(); parent != nil {
		for _, v := range parent.ChildrenOfKind(topictree.KindVideo) {
			if related["video:"+v.ID] != nil && v.Available {
				ctx.RelatedVideos = append(ctx.RelatedVideos, v)
			}
		}
	}

	return ctx
}

func nonNil(nodes []*topictree.Node) []*topictree.Node {
	if nodes == nil {
		return []*topictree.Node{}
	}
	return nodes
}
