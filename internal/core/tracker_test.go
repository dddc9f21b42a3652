package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()
	b, err := tr.register("job-1", "salon-1", 4)
	require.NoError(t, err)

	snap, err := tr.Snapshot(b.id)
	require.NoError(t, err)
	assert.Equal(t, BatchQueued, snap.Status)
	assert.Equal(t, 4, snap.TotalRows)
	assert.Nil(t, snap.StartedAt)

	tr.begin(b)
	tr.recordSuccess(b)
	tr.recordFailure(b)

	snap, _ = tr.Snapshot(b.id)
	assert.Equal(t, BatchProcessing, snap.Status)
	assert.NotNil(t, snap.StartedAt)
	assert.Equal(t, 1, snap.SuccessfulRows)
	assert.Equal(t, 1, snap.FailedRows)
	assert.Equal(t, 50, snap.Progress)

	tr.recordSuccess(b)
	tr.recordSuccess(b)
	final := tr.finish(b, BatchCompleted, "")
	assert.Equal(t, BatchCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.NotNil(t, final.FinishedAt)

	// terminal state is immutable
	tr.recordFailure(b)
	again := tr.finish(b, BatchFailed, "late")
	assert.Equal(t, BatchCompleted, again.Status)
	assert.Equal(t, 3, again.SuccessfulRows)
	assert.Equal(t, 1, again.FailedRows)
	assert.Empty(t, again.Error)
}

func TestTracker_CountersBoundedByTotal(t *testing.T) {
	tr := NewTracker()
	b, _ := tr.register("job-1", "salon-1", 1)
	tr.begin(b)
	tr.recordSuccess(b)
	tr.recordFailure(b)

	snap, _ := tr.Snapshot(b.id)
	assert.Equal(t, 1, snap.SuccessfulRows+snap.FailedRows)
}

func TestTracker_OneActiveBatchPerJob(t *testing.T) {
	tr := NewTracker()
	b, err := tr.register("job-1", "salon-1", 1)
	require.NoError(t, err)

	_, err = tr.register("job-1", "salon-1", 1)
	assert.ErrorIs(t, err, ErrBatchAlreadyRunning)

	_, err = tr.register("job-2", "salon-1", 1)
	assert.NoError(t, err, "other jobs are independent")

	id, ok := tr.ActiveBatch("job-1")
	assert.True(t, ok)
	assert.Equal(t, b.id, id)

	tr.finish(b, BatchFailed, "boom")
	_, ok = tr.ActiveBatch("job-1")
	assert.False(t, ok)

	next, err := tr.register("job-1", "salon-1", 1)
	require.NoError(t, err)
	assert.NotEqual(t, b.id, next.id)
}

func TestTracker_EmptyBatchCompletesAt100(t *testing.T) {
	tr := NewTracker()
	b, _ := tr.register("job-1", "salon-1", 0)
	tr.begin(b)
	snap := tr.finish(b, BatchCompleted, "")
	assert.Equal(t, 100, snap.Progress)
}

func TestTracker_UnknownBatch(t *testing.T) {
	tr := NewTracker()
	_, err := tr.Snapshot("nope")
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, _, err = tr.Subscribe("nope")
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, err = tr.Done("nope")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestTracker_SubscribeReceivesTerminalState(t *testing.T) {
	tr := NewTracker()
	b, _ := tr.register("job-1", "salon-1", 100)

	ch, unsubscribe, err := tr.Subscribe(b.id)
	require.NoError(t, err)
	defer unsubscribe()

	first := <-ch
	assert.Equal(t, BatchQueued, first.Status)

	// Overflow the listener buffer without reading.
	tr.begin(b)
	for i := 0; i < 100; i++ {
		tr.recordSuccess(b)
	}
	tr.finish(b, BatchCompleted, "")

	var last BatchSnapshot
	for snap := range ch {
		last = snap
	}
	assert.Equal(t, BatchCompleted, last.Status)
	assert.Equal(t, 100, last.SuccessfulRows)
}

func TestTracker_SubscribeAfterFinish(t *testing.T) {
	tr := NewTracker()
	b, _ := tr.register("job-1", "salon-1", 0)
	tr.finish(b, BatchCompleted, "")

	ch, _, err := tr.Subscribe(b.id)
	require.NoError(t, err)

	snap, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, BatchCompleted, snap.Status)
	_, ok = <-ch
	assert.False(t, ok, "channel closes after the terminal state")
}

func TestTracker_Unsubscribe(t *testing.T) {
	tr := NewTracker()
	b, _ := tr.register("job-1", "salon-1", 2)
	ch, unsubscribe, _ := tr.Subscribe(b.id)
	<-ch

	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)

	// finishing after unsubscribe must not panic on a closed channel
	tr.finish(b, BatchCompleted, "")
}

func TestTracker_ConcurrentReadersSeeMonotonicCounters(t *testing.T) {
	const total = 500
	tr := NewTracker()
	b, _ := tr.register("job-1", "salon-1", total)
	tr.begin(b)

	var writers sync.WaitGroup
	for w := 0; w < 8; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			for i := w; i < total; i += 8 {
				if i%5 == 0 {
					tr.recordFailure(b)
				} else {
					tr.recordSuccess(b)
				}
			}
		}(w)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			lastDone, lastProgress := 0, 0
			for {
				snap, err := tr.Snapshot(b.id)
				if err != nil {
					t.Errorf("Snapshot: %v", err)
					return
				}
				done := snap.SuccessfulRows + snap.FailedRows
				if done < lastDone || snap.Progress < lastProgress {
					t.Errorf("counters went backwards: %d -> %d, %d%% -> %d%%", lastDone, done, lastProgress, snap.Progress)
					return
				}
				if done > snap.TotalRows {
					t.Errorf("done %d exceeds total %d", done, snap.TotalRows)
					return
				}
				if snap.Progress != progressPercent(done, snap.TotalRows) {
					t.Errorf("progress %d does not match counters %d/%d", snap.Progress, done, snap.TotalRows)
					return
				}
				lastDone, lastProgress = done, snap.Progress
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	writers.Wait()
	close(stop)
	readers.Wait()

	snap := tr.finish(b, BatchCompleted, "")
	assert.Equal(t, total, snap.SuccessfulRows+snap.FailedRows)
	assert.Equal(t, 100, snap.FailedRows)
	assert.Equal(t, 100, snap.Progress)
}

func TestTracker_EvictFinished(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	old, _ := tr.register("job-1", "salon-1", 0)
	tr.finish(old, BatchCompleted, "")
	running, _ := tr.register("job-2", "salon-1", 1)

	evicted := tr.EvictFinished(now.Add(time.Minute))
	assert.Equal(t, []string{old.id}, evicted)

	_, err := tr.Snapshot(old.id)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, err = tr.Snapshot(running.id)
	assert.NoError(t, err)
}

func TestProgressPercent(t *testing.T) {
	tests := []struct{ done, total, want int }{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 200, 1},
		{1, 201, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressPercent(tt.done, tt.total), "%d/%d", tt.done, tt.total)
	}
}
