// Package progress reports diagnostic progress on stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar counting time steps or fields.
// A Tracker created with Quiet draws nothing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
	ticks atomic.Int64
	once  sync.Once
}

// Option configures a Tracker.
type Option func(*settings)

type settings struct {
	out   io.Writer
	quiet bool
}

// WithWriter draws the bar on w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.out = w
	}
}

// Quiet disables drawing when on is true.
func Quiet(on bool) Option {
	return func(s *settings) {
		s.quiet = on
	}
}

func apply(opts []Option) settings {
	s := settings{out: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}
	if s.quiet {
		s.out = io.Discard
	}
	return s
}

// NewSpinner creates a spinner for operations with unknown total count.
func NewSpinner(label string, opts ...Option) *Tracker {
	s := apply(opts)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, out: s.out, label: label}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int, opts ...Option) *Tracker {
	if total < 0 {
		total = 0
	}
	s := apply(opts)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, out: s.out, label: label}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.ticks.Add(1)
	t.bar.Add(1)
}

// Current returns the number of ticks so far.
func (t *Tracker) Current() int64 {
	return t.ticks.Load()
}

func (t *Tracker) finish() bool {
	done := false
	t.once.Do(func() {
		t.bar.Finish()
		t.bar.Clear()
		done = true
	})
	return done
}

// FinishSuccess clears the bar without further output.
func (t *Tracker) FinishSuccess() {
	t.finish()
}

// FinishSkipped clears the bar and prints a skip message.
func (t *Tracker) FinishSkipped(reason string) {
	if t.finish() {
		fmt.Fprintf(t.out, "  %s skipped (%s)\n", t.label, reason)
	}
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	if t.finish() {
		fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
	}
}
