// Package humanize generates human-like interaction timing: bounded
// non-uniform delays, per-keystroke typing variance, and curved pointer
// paths. It is pure computation: callers decide when and whether to sleep.
package humanize

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// minTypingDelay is the floor for per-keystroke delays. Faster than this
// is not plausible for a human on a physical keyboard.
const minTypingDelay = 20 * time.Millisecond

// maxControlOffsetRatio bounds the Bezier control-point offset relative to
// the start-to-target distance. Values above 1.0 would break the guarantee
// that the path monotonically approaches the target.
const maxControlOffsetRatio = 0.3

// Point is a pointer position in page coordinates.
type Point struct {
	X float64
	Y float64
}

// Humanizer produces randomized timing and movement values.
//
// Design decision: the random source is an injected, explicitly constructed
// dependency rather than the package-global generator so that tests can seed
// it for deterministic output and multiple crawl configurations can coexist
// without sharing state.
type Humanizer struct {
	// mu guards rnd; *rand.Rand is not safe for concurrent use.
	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Humanizer.
type Option func(*Humanizer)

// WithSeed makes all output deterministic. Intended for tests.
func WithSeed(seed int64) Option {
	return func(h *Humanizer) {
		h.rnd = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	}
}

// New creates a Humanizer. Without options the generator is seeded from the
// runtime's random source and output is non-deterministic.
func New(opts ...Option) *Humanizer {
	h := &Humanizer{}
	for _, opt := range opts {
		opt(h)
	}
	if h.rnd == nil {
		h.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return h
}

// Delay returns a duration in [min, max] drawn from a triangular
// distribution peaked at the midpoint. A uniform draw would produce the
// flat histogram that behavioral fingerprinting looks for; the sum of two
// uniform draws does not.
func (h *Humanizer) Delay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	h.mu.Lock()
	u := (h.rnd.Float64() + h.rnd.Float64()) / 2
	h.mu.Unlock()

	return min + time.Duration(u*float64(max-min))
}

// TypingDelay returns a per-keystroke delay around base with small
// per-call variance, never below 20ms.
func (h *Humanizer) TypingDelay(base time.Duration) time.Duration {
	h.mu.Lock()
	// -30ms..+50ms, matching observed inter-key variance of touch typists.
	jitter := time.Duration(h.rnd.Int64N(int64(80*time.Millisecond))) - 30*time.Millisecond
	h.mu.Unlock()

	d := base + jitter
	if d < minTypingDelay {
		return minTypingDelay
	}
	return d
}

// PointerPath returns a curved pointer path from from to to with steps+1
// points. The curve is a quadratic Bezier whose control point is offset
// perpendicular to the straight line by a random bounded amount, so the
// path is never a straight line yet always monotonically approaches the
// target.
func (h *Humanizer) PointerPath(from, to Point, steps int) []Point {
	if steps < 1 {
		steps = 1
	}

	dx := to.X - from.X
	dy := to.Y - from.Y
	dist := math.Hypot(dx, dy)

	h.mu.Lock()
	// Random offset in (-maxRatio, maxRatio) excluding near-zero values,
	// so even short moves visibly curve.
	ratio := (h.rnd.Float64()*1.6 - 0.8) * maxControlOffsetRatio
	if math.Abs(ratio) < 0.05 {
		ratio = math.Copysign(0.05, ratio)
	}
	h.mu.Unlock()

	// Perpendicular unit vector to the straight line.
	var nx, ny float64
	if dist > 0 {
		nx = -dy / dist
		ny = dx / dist
	}

	ctrl := Point{
		X: (from.X+to.X)/2 + nx*ratio*dist,
		Y: (from.Y+to.Y)/2 + ny*ratio*dist,
	}

	path := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		mt := 1 - t
		path = append(path, Point{
			X: mt*mt*from.X + 2*mt*t*ctrl.X + t*t*to.X,
			Y: mt*mt*from.Y + 2*mt*t*ctrl.Y + t*t*to.Y,
		})
	}

	// Endpoints must be exact regardless of float rounding.
	path[0] = from
	path[steps] = to

	return path
}

// Chance returns true with probability p in [0, 1]. Used for occasional
// extra behaviors like a thinking pause mid-typing.
func (h *Humanizer) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rnd.Float64() < p
}
