package app

import (
	"time"

	"hive_fund/internal/domain/circle"
)

// Option tunes a service. Unknown options are ignored by services that
// have no use for them.
type Option func(*options)

type options struct {
	clock   func() time.Time
	shuffle circle.ShuffleFunc
}

func defaultOptions() options {
	return options{
		clock:   time.Now,
		shuffle: circle.DefaultShuffle,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithClock replaces time.Now, mostly for tests and sweeps replayed for a given day.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithShuffle replaces the lottery permutation source.
func WithShuffle(shuffle circle.ShuffleFunc) Option {
	return func(o *options) { o.shuffle = shuffle }
}
