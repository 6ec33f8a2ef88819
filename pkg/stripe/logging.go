package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/uninote/uninote-backend/pkg/logger"
)

// leveledLogger sends the SDK's own diagnostics through the service logger.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

var _ stripe.LeveledLoggerInterface = (*leveledLogger)(nil)

func newLeveledLogger(ctx context.Context, logg *logger.Logger) *leveledLogger {
	return &leveledLogger{ctx: logg.WithField(context.WithoutCancel(ctx), "stripe_sdk", true), logg: logg}
}

func (l *leveledLogger) Debugf(format string, v ...any) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}

// Infof is demoted to debug; the SDK logs every outbound request at info.
func (l *leveledLogger) Infof(format string, v ...any) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	l.logg.Warn(l.ctx, fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.logg.Error(l.ctx, msg, errors.New(msg))
}
