// This file defines the data passed between the page context, the
// background summarizer and the popup.

package models

import "time"

// ContentKind says which extraction path produced a body.
type ContentKind string

const (
	KindNone             ContentKind = "none"
	KindArticle          ContentKind = "article"
	KindVideoTranscript  ContentKind = "video_transcript"
	KindVideoDescription ContentKind = "video_description"
)

// ExtractedContent is the single result of one extraction run.
// A nil Body means there was nothing worth summarizing.
type ExtractedContent struct {
	SourceURL string      `json:"url"`
	Title     string      `json:"title"`
	Body      *string     `json:"body"`
	Kind      ContentKind `json:"kind"`
}

// HasBody reports whether the extraction produced any text at all.
func (c ExtractedContent) HasBody() bool {
	return c.Body != nil && *c.Body != ""
}

// Text returns the body or an empty string when there is none.
func (c ExtractedContent) Text() string {
	if c.Body == nil {
		return ""
	}
	return *c.Body
}

// RecentItem is a summarized page as listed by the popup.
type RecentItem struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// HistoryEntry is a persisted summary.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"userid,omitempty"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
