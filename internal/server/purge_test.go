package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestRunPurger_ticksUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPurger(ctx, p, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestRunPurger_logsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	p := &countingPurger{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunPurger(ctx, p, 5*time.Millisecond, zap.New(core))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("session purge failed").Len() > 0
	}, time.Second, time.Millisecond)
}

func TestStartPurger_stopWaitsForExit(t *testing.T) {
	p := &countingPurger{}
	stop := StartPurger(context.Background(), p, time.Millisecond, zap.NewNop())

	assert.Eventually(t, func() bool { return p.calls.Load() >= 1 }, time.Second, time.Millisecond)
	stop()
	after := p.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, p.calls.Load(), "purger ticked after stop returned")
}
