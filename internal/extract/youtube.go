package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

// Transcript and description locations on a YouTube watch page.
var (
	TranscriptSelectors = []string{
		"#segments-container .segment-text",
		"ytd-transcript-segment-renderer .segment-text",
		"xpath://ytd-transcript-segment-list-renderer//*[contains(@class,'segment-text')]",
	}
	DescriptionSelectors = []string{
		"#description .yt-formatted-string",
		"#description-inline-expander",
		"#description",
	}
)

// IsYouTubeWatch reports whether raw is a YouTube video page.
func IsYouTubeWatch(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		return u.Path == "/watch" && u.Query().Get("v") != ""
	case "youtu.be":
		return len(strings.Trim(u.Path, "/")) > 0
	}
	return false
}

// YouTube prefers the opened transcript panel and falls back to the
// video description.
type YouTube struct{}

func (YouTube) Name() string { return "youtube" }

func (YouTube) Extract(_ context.Context, doc *Document) (Result, error) {
	if !IsYouTubeWatch(doc.URL) {
		return Result{}, ErrNotApplicable
	}
	for _, sel := range TranscriptSelectors {
		segments, err := doc.SelectText(sel)
		if err != nil || len(segments) == 0 {
			continue
		}
		return Result{Text: strings.Join(segments, " "), Kind: models.KindVideoTranscript, Raw: true}, nil
	}
	for _, sel := range DescriptionSelectors {
		parts, err := doc.SelectText(sel)
		if err != nil || len(parts) == 0 {
			continue
		}
		return Result{Text: strings.Join(parts, "\n"), Kind: models.KindVideoDescription, Raw: true}, nil
	}
	if d := doc.Description(); d != "" {
		return Result{Text: d, Kind: models.KindVideoDescription, Raw: true}, nil
	}
	return Result{}, ErrNoText
}
