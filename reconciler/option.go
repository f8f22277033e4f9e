package reconciler

import (
	"time"

	"policyrag/vectorstores"
)

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency caps how many documents reconcile in parallel.
func WithConcurrency(limit int) Option {
	return func(p *Processor) {
		if limit > 0 {
			p.concurrency = limit
		}
	}
}

// WithKeepGoing records failed documents as skipped instead of aborting the
// batch on the first error. Skipped documents keep their manifest entry
// untouched and are retried on the next run.
func WithKeepGoing() Option {
	return func(p *Processor) {
		p.keepGoing = true
	}
}

// WithClock overrides the timestamp source recorded in manifest entries.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogf routes progress messages; by default they are discarded.
func WithLogf(logf func(format string, args ...interface{})) Option {
	return func(p *Processor) {
		if logf != nil {
			p.logf = logf
		}
	}
}

// WithIndexOptions sets options passed to every index mutation, e.g. a
// namespace.
func WithIndexOptions(opts ...vectorstores.Option) Option {
	return func(p *Processor) {
		p.indexOptions = opts
	}
}
