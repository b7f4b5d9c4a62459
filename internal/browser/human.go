package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/jobscan/internal/humanize"
)

// pacing bundles the human-like interaction settings the driver applies
// between and during page actions.
type pacing struct {
	human       *humanize.Humanizer
	minDelay    time.Duration
	maxDelay    time.Duration
	typingDelay time.Duration
	mouseSteps  int
}

// dwell sleeps for a randomized think-time between actions. It returns
// early with the context error if the context is canceled.
func (p *pacing) dwell(ctx context.Context) error {
	d := p.human.Delay(p.minDelay, p.maxDelay)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// scrollPage scrolls down the page in a few uneven increments, pausing
// between them. Listing pages lazy-load below the fold, so scrolling is
// functional as well as cosmetic.
func (p *pacing) scrollPage(ctx context.Context, page *rod.Page) error {
	steps := 3
	if p.human.Chance(0.4) {
		steps++
	}

	for i := 0; i < steps; i++ {
		offset := 300 + float64(p.human.Delay(0, 400*time.Millisecond))/float64(time.Millisecond)
		if err := page.Mouse.Scroll(0, offset, 4); err != nil {
			return err
		}

		pause := p.human.Delay(p.minDelay/2, p.maxDelay/2)
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// movePointer moves the mouse along a curved path to the target. Errors
// are returned so callers can decide whether the move was load-bearing.
func (p *pacing) movePointer(page *rod.Page, from, to humanize.Point) error {
	for _, pt := range p.human.PointerPath(from, to, p.mouseSteps) {
		if err := page.Mouse.MoveTo(proto.Point{X: pt.X, Y: pt.Y}); err != nil {
			return err
		}
	}
	return nil
}

// typeText types text into the focused element one rune at a time with
// per-keystroke delays, including an occasional longer thinking pause.
func (p *pacing) typeText(ctx context.Context, page *rod.Page, text string) error {
	for _, r := range text {
		if err := page.InsertText(string(r)); err != nil {
			return err
		}

		d := p.human.TypingDelay(p.typingDelay)
		if p.human.Chance(0.05) {
			d += p.human.Delay(300*time.Millisecond, 900*time.Millisecond)
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
