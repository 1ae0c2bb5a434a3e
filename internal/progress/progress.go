package progress

import (
	"context"
	"fmt"
	"io"
	"math/bits"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/thirdweb-dev/archive-exporter/internal/metrics"
)

const (
	Complete     uint64 = 100
	DefaultDelay        = 100 * time.Millisecond
	barWidth            = 40
)

// Normalize maps current within [start, end] to 0..100. Values at or below
// start give 0 and values at or above end give 100.
func Normalize(start, end, current uint64) uint64 {
	if current <= start {
		return 0
	}
	if current >= end {
		return Complete
	}
	// (current-start)*100 can overflow 64 bits on large heights
	hi, lo := bits.Mul64(current-start, Complete)
	q, _ := bits.Div64(hi, lo, end-start)
	return q
}

// Reporter draws a terminal progress bar from normalized values.
type Reporter struct {
	out     io.Writer
	delay   time.Duration
	label   string
	last    uint64
	updates int
}

type ReporterOption func(*Reporter)

// WithDelay sets the pause after each redraw.
func WithDelay(delay time.Duration) ReporterOption {
	return func(r *Reporter) {
		r.delay = delay
	}
}

func WithLabel(label string) ReporterOption {
	return func(r *Reporter) {
		r.label = label
	}
}

func NewReporter(out io.Writer, opts ...ReporterOption) *Reporter {
	r := &Reporter{out: out, delay: DefaultDelay, label: "exporting"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Updates returns how many values were drawn.
func (r *Reporter) Updates() int {
	return r.updates
}

// Run draws every value until one reaches 100 or the channel closes. After
// completion it keeps draining the channel so a producer never blocks on it.
func (r *Reporter) Run(ctx context.Context, updates <-chan uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-updates:
			if !ok {
				r.finish()
				return nil
			}
			r.draw(v)
			if v >= Complete {
				r.finish()
				return drain(ctx, updates)
			}
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Reporter) draw(v uint64) {
	if v > Complete {
		v = Complete
	}
	r.last = v
	r.updates++
	metrics.ProgressPercent.Set(float64(v))

	filled := int(v) * barWidth / int(Complete)
	bar := color.GreenString(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
	fmt.Fprintf(r.out, "\r%s %s %3d%%", color.CyanString(r.label), bar, v)
}

func (r *Reporter) finish() {
	if r.updates > 0 {
		fmt.Fprintln(r.out)
	}
}

func (r *Reporter) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(ctx context.Context, updates <-chan uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return nil
			}
		}
	}
}
