package worker

import (
	"github.com/okian/fheprop/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Reconciler) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Reconciler) {
		if l != nil {
			w.logger = l
		}
	}
}
