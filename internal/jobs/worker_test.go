package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockChunkSweeper struct {
	mock.Mock
}

func (m *MockChunkSweeper) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_KeepsRunningAfterProcessorError(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("database unavailable"))

	worker := NewWorker(mockProcessor, 20*time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestSweepWorker_ProcessJobs(t *testing.T) {
	sweeper := new(MockChunkSweeper)
	sweeper.On("Sweep", mock.Anything, time.Hour).Return(int64(42), nil)

	worker := NewSweepWorker(sweeper, time.Hour, zaptest.NewLogger(t))
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	sweeper.AssertExpectations(t)
}

func TestSweepWorker_ProcessJobs_NothingToRemove(t *testing.T) {
	sweeper := new(MockChunkSweeper)
	sweeper.On("Sweep", mock.Anything, 30*time.Minute).Return(int64(0), nil)

	worker := NewSweepWorker(sweeper, 30*time.Minute, nil)

	assert.NoError(t, worker.ProcessJobs(context.Background()))
}

func TestSweepWorker_ProcessJobs_Error(t *testing.T) {
	sweeper := new(MockChunkSweeper)
	sweeper.On("Sweep", mock.Anything, time.Hour).Return(int64(0), errors.New("connection refused"))

	worker := NewSweepWorker(sweeper, time.Hour, zaptest.NewLogger(t))
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sweep stale chunks")
	assert.Contains(t, err.Error(), "connection refused")
}
