package blackwidow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options configures Open, following the teacher's functional-options
// idiom. The zero value (via defaultOptions) opens with no logger, the
// default prometheus registry, no background compaction, and
// create_if_missing false.
type Options struct {
	createIfMissing    bool
	compactionInterval time.Duration
	logger             *zap.Logger
	registerer         prometheus.Registerer
	now                func() uint32
}

type Option func(*Options)

// WithCreateIfMissing controls whether Open creates path if it doesn't
// already exist.
func WithCreateIfMissing(b bool) Option {
	return func(o *Options) { o.createIfMissing = b }
}

// WithCompactionInterval starts a background goroutine per type store
// that runs Compact on this interval. Zero (the default) disables the
// background loop; callers can still invoke Compact explicitly.
func WithCompactionInterval(d time.Duration) Option {
	return func(o *Options) { o.compactionInterval = d }
}

// WithLogger supplies the *zap.Logger the engine and compaction loop log
// through.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithRegisterer supplies the prometheus.Registerer metrics are
// registered against. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) { o.registerer = r }
}

// WithNow overrides the wall-clock source used for expiry comparisons.
// Intended for tests; production callers should not set this.
func WithNow(fn func() uint32) Option {
	return func(o *Options) { o.now = fn }
}

func defaultOptions() *Options {
	return &Options{now: wallClockNow}
}

func wallClockNow() uint32 { return uint32(time.Now().Unix()) }
