// Package timeline builds the dense month axis of the device dashboard.
package timeline

import (
	"time"

	"bmeutil/internal/core"
)

const (
	DefaultFutureMonths = 3
	DefaultMaxMonths    = 84
)

// Builder produces first-of-month sequences from a set of anchor dates.
// The sequence runs from the earliest anchor month to the later of the
// latest anchor month and the current month plus FutureMonths. When
// MaxMonths is positive, history before the latest anchor is limited to
// MaxMonths-FutureMonths months, dropping the oldest ones.
type Builder struct {
	FutureMonths int
	MaxMonths    int
	Now          func() time.Time
}

func New(futureMonths, maxMonths int) *Builder {
	return &Builder{
		FutureMonths: futureMonths,
		MaxMonths:    maxMonths,
		Now:          time.Now,
	}
}

// Build returns the ordered month starts covering anchors. Zero anchors is a
// validation error: a device without any observation cannot be placed on a
// timeline.
func (b *Builder) Build(anchors []time.Time) ([]time.Time, error) {
	if len(anchors) == 0 {
		return nil, core.Invalidf("no procedure data or install date to anchor a timeline")
	}

	first, last := monthIndex(anchors[0]), monthIndex(anchors[0])
	for _, a := range anchors[1:] {
		idx := monthIndex(a)
		if idx < first {
			first = idx
		}
		if idx > last {
			last = idx
		}
	}

	if history := b.historyMonths(); history > 0 && last-first+1 > history {
		first = last - history + 1
	}

	end := last
	if horizon := monthIndex(b.now()) + b.FutureMonths; horizon > end {
		end = horizon
	}

	out := make([]time.Time, 0, end-first+1)
	for idx := first; idx <= end; idx++ {
		out = append(out, fromIndex(idx))
	}
	return out, nil
}

// Today returns the first day of the current month.
func (b *Builder) Today() time.Time {
	return core.MonthStart(b.now())
}

func (b *Builder) historyMonths() int {
	if b.MaxMonths <= 0 {
		return 0
	}
	h := b.MaxMonths - b.FutureMonths
	if h < 1 {
		h = 1
	}
	return h
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Format renders month starts as YYYY-MM-DD strings.
func Format(months []time.Time) []string {
	out := make([]string, len(months))
	for i, m := range months {
		out[i] = m.Format(core.DateLayout)
	}
	return out
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func fromIndex(idx int) time.Time {
	return time.Date(idx/12, time.Month(idx%12+1), 1, 0, 0, 0, 0, time.UTC)
}
