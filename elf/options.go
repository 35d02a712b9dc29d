package elf

import (
	"runtime"

	"github.com/go-kit/log"
	"github.com/ianlancetaylor/demangle"
)

const memoryPath = "<memory>"

type options struct {
	logger      log.Logger
	concurrency int
	demangle    bool
	demangleOpt []demangle.Option
	path        string

	// ClassNone accepts either class.
	class Class
}

func defaultOptions() options {
	return options{
		logger:      log.NewNopLogger(),
		concurrency: 1,
		demangle:    true,
		path:        memoryPath,
	}
}

type Option func(*options)

// WithLogger sets the logger used for per stage debug records.
func WithLogger(logger log.Logger) Option {
	return func(opts *options) {
		if logger == nil {
			logger = log.NewNopLogger()
		}
		opts.logger = logger
	}
}

// WithConcurrency sets the number of goroutines decoding section content.
// n <= 0 uses GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(opts *options) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		opts.concurrency = n
	}
}

func WithDemangle(demangleOpts ...demangle.Option) Option {
	return func(opts *options) {
		opts.demangle = true
		opts.demangleOpt = demangleOpts
	}
}

func WithoutDemangle() Option {
	return func(opts *options) {
		opts.demangle = false
	}
}

// WithPath names the input in error messages and log records.
func WithPath(path string) Option {
	return func(opts *options) {
		opts.path = path
	}
}
