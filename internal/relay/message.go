// Package relay connects the page, background and popup contexts with
// typed messages, one-shot requests and long-lived ports.
package relay

import (
	"time"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

// Kind is the wire discriminator of a message.
type Kind string

const (
	KindPageContent      Kind = "PAGE_CONTENT"
	KindContentExtracted Kind = "CONTENT_EXTRACTED"
	KindInitLLM          Kind = "INIT_LLM"
	KindSummarizeText    Kind = "SUMMARIZE_TEXT"
	KindTerminateLLM     Kind = "TERMINATE_LLM"
	KindLLMProgress      Kind = "LLM_PROGRESS"
	KindLLMStatus        Kind = "LLM_STATUS"
	KindGetStatus        Kind = "GET_STATUS"
	KindUpdatePopup      Kind = "UPDATE_POPUP"
	KindSummarizePage    Kind = "SUMMARIZE_PAGE"
	KindSummarizeChunk   Kind = "SUMMARIZE_CHUNK"
	KindSummarizeDone    Kind = "SUMMARIZE_DONE"
	KindSummarizeError   Kind = "SUMMARIZE_ERROR"
	KindChatQuery        Kind = "CHAT_QUERY"
)

// Message is implemented only by the types in this file.
type Message interface {
	Kind() Kind
	isMessage()
}

// Reply statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// LLM_STATUS values.
const (
	LLMLoading    = "loading"
	LLMReady      = "ready"
	LLMFailed     = "failed"
	LLMTerminated = "terminated"
)

// Reply is the response to a request. Which fields are set depends on the
// request kind.
type Reply struct {
	Status      string              `json:"status,omitempty"`
	Message     string              `json:"message,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	RecentItems []models.RecentItem `json:"recentItems,omitempty"`
}

// OK reports whether the reply carries a success status.
func (r Reply) OK() bool { return r.Status == StatusSuccess }

// PageContent carries raw text scraped by the page context.
type PageContent struct {
	Content string `json:"content"`
}

// ContentData is the payload of CONTENT_EXTRACTED.
type ContentData struct {
	URL              string  `json:"url"`
	Title            string  `json:"title"`
	ArticleText      *string `json:"articleText"`
	VideoDescription *string `json:"videoDescription,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// ContentExtracted is sent by the page context once per extraction.
type ContentExtracted struct {
	Data ContentData `json:"data"`
}

// NewContentExtracted maps an extraction result onto the wire payload.
// Descriptions travel in their own field; every other kind is article text.
func NewContentExtracted(c models.ExtractedContent) ContentExtracted {
	data := ContentData{URL: c.SourceURL, Title: c.Title, Source: string(c.Kind)}
	if c.Kind == models.KindVideoDescription {
		data.VideoDescription = c.Body
	} else {
		data.ArticleText = c.Body
	}
	return ContentExtracted{Data: data}
}

// Content converts the payload back into an extraction result.
func (m ContentExtracted) Content() models.ExtractedContent {
	c := models.ExtractedContent{
		SourceURL: m.Data.URL,
		Title:     m.Data.Title,
		Kind:      models.ContentKind(m.Data.Source),
	}
	switch {
	case m.Data.ArticleText != nil:
		c.Body = m.Data.ArticleText
		if c.Kind == "" || c.Kind == models.KindVideoDescription {
			c.Kind = models.KindArticle
		}
	case m.Data.VideoDescription != nil:
		c.Body = m.Data.VideoDescription
		c.Kind = models.KindVideoDescription
	default:
		c.Kind = models.KindNone
	}
	return c
}

// InitLLM asks the background to load a model. An empty ModelID means the
// configured default.
type InitLLM struct {
	ModelID string `json:"modelId,omitempty"`
}

// SummarizeText asks for a one-shot, non-streamed summary.
type SummarizeText struct {
	Text string `json:"text"`
}

type TerminateLLM struct{}

type LLMProgress struct {
	Data models.LoadProgress `json:"data"`
}

type LLMStatus struct {
	Data  string `json:"data"`
	Error string `json:"error,omitempty"`
}

type GetStatus struct{}

// UpdatePopup tells open popups to refresh their status.
type UpdatePopup struct{}

// SummarizePage asks the background to run the whole pipeline for a URL.
type SummarizePage struct {
	URL string `json:"url"`
}

// SummarizeChunk carries the full answer accumulated so far.
type SummarizeChunk struct {
	Answer    string    `json:"answer"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SummarizeDone struct {
	Summary string `json:"summary"`
}

type SummarizeError struct {
	Message string `json:"message"`
}

// ChatQuery is a free-form question for the current conversation.
type ChatQuery struct {
	Text string `json:"text"`
}

func (PageContent) Kind() Kind      { return KindPageContent }
func (ContentExtracted) Kind() Kind { return KindContentExtracted }
func (InitLLM) Kind() Kind          { return KindInitLLM }
func (SummarizeText) Kind() Kind    { return KindSummarizeText }
func (TerminateLLM) Kind() Kind     { return KindTerminateLLM }
func (LLMProgress) Kind() Kind      { return KindLLMProgress }
func (LLMStatus) Kind() Kind        { return KindLLMStatus }
func (GetStatus) Kind() Kind        { return KindGetStatus }
func (UpdatePopup) Kind() Kind      { return KindUpdatePopup }
func (SummarizePage) Kind() Kind    { return KindSummarizePage }
func (SummarizeChunk) Kind() Kind   { return KindSummarizeChunk }
func (SummarizeDone) Kind() Kind    { return KindSummarizeDone }
func (SummarizeError) Kind() Kind   { return KindSummarizeError }
func (ChatQuery) Kind() Kind        { return KindChatQuery }

func (PageContent) isMessage()      {}
func (ContentExtracted) isMessage() {}
func (InitLLM) isMessage()          {}
func (SummarizeText) isMessage()    {}
func (TerminateLLM) isMessage()     {}
func (LLMProgress) isMessage()      {}
func (LLMStatus) isMessage()        {}
func (GetStatus) isMessage()        {}
func (UpdatePopup) isMessage()      {}
func (SummarizePage) isMessage()    {}
func (SummarizeChunk) isMessage()   {}
func (SummarizeDone) isMessage()    {}
func (SummarizeError) isMessage()   {}
func (ChatQuery) isMessage()        {}
