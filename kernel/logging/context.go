package logging

import (
	"context"

	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// WithLogger returns a context whose operations log through log.
func WithLogger(ctx context.Context, log *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// From returns the logger carried by ctx, or the global logger.
func From(ctx context.Context) *logrus.Entry {
	if log, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok && log != nil {
		return log
	}
	return pfxlog.Logger().Entry
}
