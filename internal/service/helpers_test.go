package service

import (
	"testing"
	"time"

	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"go.uber.org/zap/zaptest"
)

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d := dispatcher.New(dispatcher.Config{Limit: 100, Window: time.Minute}, zaptest.NewLogger(t))
	t.Cleanup(d.Close)
	return d
}

func fastPolicy(maxRetries int) dispatcher.RetryPolicy {
	return dispatcher.RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}
