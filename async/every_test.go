package async_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rustchain-network/rustchain/async"
)

func TestRunEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	async.RunEvery(ctx, 10*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
	})
	time.Sleep(100 * time.Millisecond)
	cancel()
	got := atomic.LoadInt32(&calls)
	if got == 0 {
		t.Fatal("expected the function to have been called at least once")
	}
	time.Sleep(30 * time.Millisecond)
	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	if diff := atomic.LoadInt32(&calls) - after; diff > 1 {
		t.Errorf("function still running after context cancel, %d extra calls", diff)
	}
}
