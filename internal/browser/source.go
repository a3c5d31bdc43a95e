package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
)

// MaxTranscriptWait bounds the time spent waiting for the transcript panel.
const MaxTranscriptWait = 1500 * time.Millisecond

const navigateTimeout = 30 * time.Second

// Expands the description and opens the transcript panel. Returns whether
// the transcript button was found.
const revealTranscriptJS = `() => {
	const more = document.querySelector('tp-yt-paper-button#expand');
	if (more) more.click();
	const btn = document.querySelector('#primary-button ytd-button-renderer yt-button-shape button')
		|| Array.from(document.querySelectorAll('button')).find(b => /transcript/i.test(b.innerText || ''));
	if (!btn) return false;
	btn.click();
	return true;
}`

// Marks every element the user cannot see so static extraction can skip it.
const markHiddenJS = `(attr) => {
	let n = 0;
	for (const el of document.body ? document.body.querySelectorAll('*') : []) {
		const s = getComputedStyle(el);
		const r = el.getBoundingClientRect();
		if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0' ||
			(r.width === 0 && r.height === 0 && el.children.length === 0)) {
			el.setAttribute(attr, '');
			n++;
		}
	}
	return n;
}`

const outerHTMLJS = `() => document.documentElement.outerHTML`

// Source fetches pages by rendering them in the managed browser.
type Source struct {
	mgr            *Manager
	transcriptWait time.Duration
}

func NewSource(mgr *Manager) *Source {
	return &Source{mgr: mgr, transcriptWait: clampWait(mgr.cfg.TranscriptWait)}
}

func clampWait(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxTranscriptWait {
		return MaxTranscriptWait
	}
	return d
}

func (s *Source) Fetch(ctx context.Context, url string) (*fetch.Page, error) {
	b, err := s.mgr.Browser()
	if err != nil {
		return nil, err
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.mgr.log.Warn().Err(err).Str("url", url).Msg("Page load did not finish")
	}

	if extract.IsYouTubeWatch(url) {
		s.revealTranscript(navCtx, p, url)
	}

	if _, err := p.Eval(markHiddenJS, extract.HiddenAttr); err != nil {
		s.mgr.log.Debug().Err(err).Str("url", url).Msg("Could not mark hidden elements")
	}

	res, err := p.Eval(outerHTMLJS)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	info, err := p.Info()
	final := url
	if err == nil && info.URL != "" {
		final = info.URL
	}
	return &fetch.Page{URL: final, HTML: res.Value.Str(), Rendered: true}, nil
}

func (s *Source) revealTranscript(ctx context.Context, p *rod.Page, url string) {
	res, err := p.Eval(revealTranscriptJS)
	if err != nil || !res.Value.Bool() {
		s.mgr.log.Debug().Err(err).Str("url", url).Msg("Transcript button not found")
		return
	}
	t := time.NewTimer(s.transcriptWait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
