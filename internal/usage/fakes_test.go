package usage

import (
	"context"
	"sync"

	"github.com/goodtune/onlinelimiter/internal/activity"
	"github.com/goodtune/onlinelimiter/internal/storage"
)

type memBudgetStore struct {
	mu     sync.Mutex
	slot   *storage.BudgetSlot
	getErr error
	putErr error
	puts   int
}

func (m *memBudgetStore) Get(context.Context) (*storage.BudgetSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return m.slot, m.getErr
	}
	if m.slot == nil {
		return nil, storage.ErrNotFound
	}
	slot := *m.slot
	return &slot, nil
}

func (m *memBudgetStore) Put(_ context.Context, slot storage.BudgetSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.slot = &slot
	return nil
}

type memUsageStore struct {
	mu   sync.Mutex
	days map[string]int64
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{days: make(map[string]int64)}
}

func (m *memUsageStore) GetDailyUsage(_ context.Context, date string) (*storage.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seconds, ok := m.days[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.DailyUsage{Date: date, Seconds: seconds}, nil
}

func (m *memUsageStore) IncrementDailyUsage(_ context.Context, date string, seconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.days[date] += seconds
	return nil
}

func (m *memUsageStore) DeleteDailyUsageBefore(_ context.Context, cutoffDate string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for date := range m.days {
		if date < cutoffDate {
			delete(m.days, date)
			deleted++
		}
	}
	return deleted, nil
}

// scriptedSampler reports activity according to active, called with the
// 1-based tick number.
type scriptedSampler struct {
	ticks  int
	active func(tick int) bool
}

func (s *scriptedSampler) Sample(context.Context) activity.Sample {
	s.ticks++
	if s.active != nil && s.active(s.ticks) {
		return activity.Sample{GameID: "1086940"}
	}
	return activity.Sample{}
}

func always(int) bool { return true }

type countingEnforcer struct {
	calls int
}

func (e *countingEnforcer) Enforce(context.Context) int {
	e.calls++
	return 0
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

type countingRotator struct {
	calls int
	err   error
}

func (r *countingRotator) Rotate() (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "limiter.1.log", nil
}
