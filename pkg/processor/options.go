package processor

import (
	"time"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/store"
)

type options struct {
	policy            retry.Policy
	classifier        retry.Classifier
	processingTimeout time.Duration
	maxReasonLength   int
	deadLetters       DeadLetterPublisher
	logger            *zap.Logger
	now               func() time.Time
}

func defaultOptions() options {
	return options{
		policy:            retry.DefaultPolicy(),
		classifier:        retry.NewClassifier(),
		processingTimeout: store.DefaultProcessingTimeout,
		maxReasonLength:   retry.DefaultMaxReasonLength,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
}

// Option configures an Engine.
type Option func(*options)

func WithPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

func WithClassifier(c retry.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithProcessingTimeout sets how long a PROCESSING claim is honored.
func WithProcessingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.processingTimeout = d
		}
	}
}

func WithMaxReasonLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxReasonLength = n
		}
	}
}

func WithDeadLetterPublisher(p DeadLetterPublisher) Option {
	return func(o *options) { o.deadLetters = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
