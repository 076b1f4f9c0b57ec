// Package backoff implements the adaptive max-skew controller the tick
// thread consults after every worker-stall scan: it grows the tolerated
// snapshot skew when workers are getting force-unpinned and decays it
// back down once the system has been quiet for a while.
package backoff

// Config parameterizes a Backoff. Defaults match the values observed to
// keep a ring_buffer_size=4 world stable under moderate worker load.
type Config struct {
	InitialMaxSkew     int
	Factor             float64
	Cap                int
	DecayRateTicks     int
	ProactiveThreshold float64
}

// DefaultConfig returns the spec's default tuning.
func DefaultConfig() Config {
	return Config{
		InitialMaxSkew:     2,
		Factor:             1.5,
		Cap:                10,
		DecayRateTicks:     60,
		ProactiveThreshold: 0.20,
	}
}

// Backoff tracks the effective max-skew tolerated before the tick thread
// should start shedding load, growing it on forced unpins and decaying
// it back to the configured initial value after a clean run.
type Backoff struct {
	cfg              Config
	effectiveMaxSkew float64
	cleanTicks       int
	window           []bool // sliding window of the last DecayRateTicks RecordTick outcomes
	windowPos        int
	windowFilled     bool
}

// New returns a Backoff seeded at cfg.InitialMaxSkew.
func New(cfg Config) *Backoff {
	if cfg.DecayRateTicks <= 0 {
		cfg.DecayRateTicks = 1
	}
	return &Backoff{
		cfg:              cfg,
		effectiveMaxSkew: float64(cfg.InitialMaxSkew),
		window:           make([]bool, cfg.DecayRateTicks),
	}
}

// EffectiveMaxSkew returns the current tolerated skew, rounded down to
// an integer tick count.
func (b *Backoff) EffectiveMaxSkew() int { return int(b.effectiveMaxSkew) }

// RecordTick records whether this tick forced an unpin and updates the
// effective max-skew accordingly.
func (b *Backoff) RecordTick(forcedUnpin bool) {
	b.pushWindow(forcedUnpin)

	if forcedUnpin {
		b.cleanTicks = 0
		b.grow()
		return
	}

	b.cleanTicks++
	if b.cleanTicks >= b.cfg.DecayRateTicks {
		b.effectiveMaxSkew = float64(b.cfg.InitialMaxSkew)
		b.cleanTicks = 0
	}

	if b.rejectionRate() > b.cfg.ProactiveThreshold {
		b.grow()
	}
}

func (b *Backoff) grow() {
	next := b.effectiveMaxSkew * b.cfg.Factor
	if next > float64(b.cfg.Cap) {
		next = float64(b.cfg.Cap)
	}
	b.effectiveMaxSkew = next
}

func (b *Backoff) pushWindow(forcedUnpin bool) {
	b.window[b.windowPos] = forcedUnpin
	b.windowPos = (b.windowPos + 1) % len(b.window)
	if b.windowPos == 0 {
		b.windowFilled = true
	}
}

func (b *Backoff) rejectionRate() float64 {
	n := len(b.window)
	if !b.windowFilled {
		n = b.windowPos
	}
	if n == 0 {
		return 0
	}
	count := 0
	for i := 0; i < n; i++ {
		if b.window[i] {
			count++
		}
	}
	return float64(count) / float64(n)
}
