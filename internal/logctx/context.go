// Package logctx attaches a request-scoped klog logger to a context,
// the way the broker's HTTP layer identifies and traces one request's
// worth of controller calls.
package logctx

import (
	"context"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// New returns a context carrying a logger tagged with a fresh context
// ID and any extra key/value pairs.
func New(keysAndValues ...any) context.Context {
	logger := klog.LoggerWithValues(klog.Background(), "contextID", uuid.NewString())
	return klog.NewContext(context.Background(), logger.WithValues(keysAndValues...))
}

// From derives a child context that keeps parent's cancellation but
// adds a fresh context ID and extra key/value pairs to its logger.
func From(parent context.Context, keysAndValues ...any) context.Context {
	logger := klog.LoggerWithValues(klog.Background(), "contextID", uuid.NewString())
	return klog.NewContext(parent, logger.WithValues(keysAndValues...))
}
