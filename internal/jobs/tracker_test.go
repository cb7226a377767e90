package jobs

import (
	"sync"
	"testing"
	"time"

	"docuchat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeJobRepo 是 JobRepository 的内存实现，用于状态机测试。
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]model.ProcessingJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]model.ProcessingJob)}
}

func (r *fakeJobRepo) Create(job *model.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) Update(job *model.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) FindByID(jobID string) (*model.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := job
	return &out, nil
}

func (r *fakeJobRepo) FindActiveByDocumentID(documentID string) (*model.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.DocumentID == documentID && !job.IsTerminal() {
			out := job
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeJobRepo) FindByDocumentID(documentID string) ([]model.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProcessingJob
	for _, job := range r.jobs {
		if job.DocumentID == documentID {
			out = append(out, job)
		}
	}
	return out, nil
}

func newTestTracker() (*Tracker, *fakeJobRepo) {
	repo := newFakeJobRepo()
	return NewTracker(repo, NewEventBus()), repo
}

func TestTrackerLifecycle(t *testing.T) {
	tracker, _ := newTestTracker()

	job, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)

	started, err := tracker.Start(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, started.Status)
	require.NotNil(t, started.StartedAt)

	require.NoError(t, tracker.Progress(job.ID, 5, 10))
	current, err := tracker.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, current.Progress)

	require.NoError(t, tracker.Complete(job.ID))
	final, err := tracker.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.CompletedAt)
}

func TestTrackerRejectsSecondActiveJob(t *testing.T) {
	tracker, _ := newTestTracker()

	first, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)

	_, err = tracker.CreateJob("doc-1", "report.pdf")
	assert.ErrorIs(t, err, ErrActiveJobExists)

	// 终态之后允许再次创建
	_, err = tracker.Start(first.ID)
	require.NoError(t, err)
	require.NoError(t, tracker.Fail(first.ID, "parse error"))

	_, err = tracker.CreateJob("doc-1", "report.pdf")
	assert.NoError(t, err)
}

func TestTrackerActiveJobSurvivesRestart(t *testing.T) {
	repo := newFakeJobRepo()
	tracker := NewTracker(repo, NewEventBus())

	_, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)

	// 重启后内存表为空，但数据库中仍有非终态任务
	restarted := NewTracker(repo, NewEventBus())
	_, err = restarted.CreateJob("doc-1", "report.pdf")
	assert.ErrorIs(t, err, ErrActiveJobExists)
}

func TestTrackerProgressIsMonotonic(t *testing.T) {
	tracker, _ := newTestTracker()

	job, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)
	_, err = tracker.Start(job.ID)
	require.NoError(t, err)

	require.NoError(t, tracker.Progress(job.ID, 8, 10))
	require.NoError(t, tracker.Progress(job.ID, 3, 10)) // 迟到的更新

	current, err := tracker.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, current.Progress)

	// 超出 totalChunks 的更新被夹取为 100
	require.NoError(t, tracker.Progress(job.ID, 15, 10))
	current, err = tracker.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, current.Progress)
}

func TestTrackerTerminalStateIsFinal(t *testing.T) {
	tracker, _ := newTestTracker()

	job, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)
	_, err = tracker.Start(job.ID)
	require.NoError(t, err)
	require.NoError(t, tracker.Complete(job.ID))

	assert.ErrorIs(t, tracker.Fail(job.ID, "too late"), ErrJobTerminal)
	assert.ErrorIs(t, tracker.Complete(job.ID), ErrJobTerminal)
	assert.ErrorIs(t, tracker.Progress(job.ID, 1, 10), ErrJobTerminal)
	_, err = tracker.Start(job.ID)
	assert.ErrorIs(t, err, ErrJobTerminal)
}

func TestTrackerStartRequiresPending(t *testing.T) {
	tracker, _ := newTestTracker()

	job, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)
	_, err = tracker.Start(job.ID)
	require.NoError(t, err)

	_, err = tracker.Start(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTrackerUnknownJob(t *testing.T) {
	tracker, _ := newTestTracker()

	_, err := tracker.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, tracker.Complete("missing"), ErrJobNotFound)
}

func TestTrackerEmitsExactlyOneTerminalEvent(t *testing.T) {
	tracker, _ := newTestTracker()

	job, err := tracker.CreateJob("doc-1", "report.pdf")
	require.NoError(t, err)

	subID, ch := tracker.Bus().Subscribe(job.ID)
	defer tracker.Bus().Unsubscribe(subID)

	_, err = tracker.Start(job.ID)
	require.NoError(t, err)
	require.NoError(t, tracker.Progress(job.ID, 1, 2))
	require.NoError(t, tracker.Complete(job.ID))
	assert.ErrorIs(t, tracker.Complete(job.ID), ErrJobTerminal)

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Equal(t, []string{
		model.EventJobStarted,
		model.EventJobProgress,
		model.EventJobCompleted,
	}, types)
}

func TestEventBusGlobalSubscription(t *testing.T) {
	bus := NewEventBus()
	subID, ch := bus.Subscribe("")
	defer bus.Unsubscribe(subID)

	bus.Publish(model.ProcessingEvent{Type: model.EventJobCreated, JobID: "a"})
	bus.Publish(model.ProcessingEvent{Type: model.EventJobCreated, JobID: "b"})

	assert.Equal(t, "a", (<-ch).JobID)
	assert.Equal(t, "b", (<-ch).JobID)
}

func TestEventBusScopedSubscription(t *testing.T) {
	bus := NewEventBus()
	subID, ch := bus.Subscribe("job-a")
	defer bus.Unsubscribe(subID)

	bus.Publish(model.ProcessingEvent{Type: model.EventJobCreated, JobID: "job-b"})
	bus.Publish(model.ProcessingEvent{Type: model.EventJobStarted, JobID: "job-a"})

	event := <-ch
	assert.Equal(t, "job-a", event.JobID)
	assert.Empty(t, ch)
}

func TestEventBusWaitsForTerminalEventWhenBufferFull(t *testing.T) {
	bus := NewEventBus()
	subID, ch := bus.Subscribe("job-a")
	defer bus.Unsubscribe(subID)

	for i := 0; i < subscriberBuffer; i++ {
		bus.Publish(model.ProcessingEvent{Type: model.EventJobProgress, JobID: "job-a"})
	}

	// 缓冲已满，终态事件发布会短暂阻塞；稍后开始消费就必须收到它
	got := make(chan model.ProcessingEvent, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		for event := range ch {
			if event.Type == model.EventJobFailed {
				got <- event
				return
			}
		}
	}()

	bus.Publish(model.ProcessingEvent{Type: model.EventJobFailed, JobID: "job-a"})

	select {
	case event := <-got:
		assert.Equal(t, model.EventJobFailed, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("终态事件在缓冲满时被丢弃")
	}
}

func TestEventBusDropsProgressEventWhenBufferFull(t *testing.T) {
	bus := NewEventBus()
	subID, ch := bus.Subscribe("job-a")
	defer bus.Unsubscribe(subID)

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(model.ProcessingEvent{Type: model.EventJobProgress, JobID: "job-a"})
	}

	assert.Len(t, ch, subscriberBuffer)
}
