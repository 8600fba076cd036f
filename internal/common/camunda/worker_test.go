package camunda

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
)

type fakeRecorder struct {
	mu        sync.Mutex
	processed []string
	durations int
}

func (f *fakeRecorder) RecordJobProcessed(_ context.Context, taskType, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, taskType+":"+status)
}

func (f *fakeRecorder) RecordJobDuration(_ context.Context, _ string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations++
}

func TestInstrument_CallsHandlerAndRecords(t *testing.T) {
	const taskType = "test-instrumented-task"
	rec := &fakeRecorder{}

	var seen int64
	var activeDuringCall float64
	h := Instrument(taskType, func(_ worker.JobClient, job entities.Job) {
		seen = job.Key
		activeDuringCall = testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues(taskType))
	}, rec)

	h(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: taskType}})

	assert.Equal(t, int64(42), seen)
	assert.Equal(t, float64(1), activeDuringCall)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues(taskType)))
	assert.Equal(t, []string{taskType + ":handled"}, rec.processed)
	assert.Equal(t, 1, rec.durations)
}

func TestInstrument_NilRecorder(t *testing.T) {
	called := false
	h := Instrument("test-nil-recorder", func(worker.JobClient, entities.Job) { called = true }, nil)

	assert.NotPanics(t, func() {
		h(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1}})
	})
	assert.True(t, called)
}
