package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type flakyPinger struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *flakyPinger) Ping(context.Context) error {
	f.calls.Add(1)
	if f.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestCheckModelHealth(t *testing.T) {
	var healthy atomic.Bool
	p := &flakyPinger{}

	assert.True(t, CheckModelHealth(context.Background(), p, &healthy))
	assert.True(t, healthy.Load())

	p.fail.Store(true)
	assert.False(t, CheckModelHealth(context.Background(), p, &healthy))
	assert.False(t, healthy.Load())
}

func TestMonitorModelHealthStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	var healthy atomic.Bool
	p := &flakyPinger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		MonitorModelHealth(ctx, p, &healthy, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, healthy.Load())
	cancel()
	<-done
}
