package report

import (
	"context"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/shared/biztime"
)

// SequenceCounter hands out monotonically increasing values per key.
type SequenceCounter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

type NumberGenerator interface {
	Generate(ctx context.Context, at time.Time) (string, error)
}

// CounterNumberGenerator builds numbers shaped {prefix}-{year}-{city}-{seq}
// from a shared counter keyed by prefix, year and city.
type CounterNumberGenerator struct {
	counter  SequenceCounter
	prefix   string
	cityCode string
	padWidth int
}

func NewCounterNumberGenerator(counter SequenceCounter, prefix, cityCode string, padWidth int) *CounterNumberGenerator {
	if padWidth <= 0 {
		padWidth = 6
	}
	return &CounterNumberGenerator{
		counter:  counter,
		prefix:   prefix,
		cityCode: cityCode,
		padWidth: padWidth,
	}
}

func (g *CounterNumberGenerator) Generate(ctx context.Context, at time.Time) (string, error) {
	year := biztime.ToBizTimezone(at).Year()
	seq, err := g.counter.Increment(ctx, SequenceKey(g.prefix, year, g.cityCode))
	if err != nil {
		return "", fmt.Errorf("failed to increment report sequence: %w", err)
	}
	return FormatNumber(g.prefix, year, g.cityCode, seq, g.padWidth), nil
}

func SequenceKey(prefix string, year int, cityCode string) string {
	return fmt.Sprintf("report_seq:%s:%d:%s", prefix, year, cityCode)
}

func FormatNumber(prefix string, year int, cityCode string, seq int64, padWidth int) string {
	return fmt.Sprintf("%s-%d-%s-%0*d", prefix, year, cityCode, padWidth, seq)
}
