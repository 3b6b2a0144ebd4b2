package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/recoverfleet/drsorch/internal/domain"
	"github.com/recoverfleet/drsorch/internal/domain/execution"
	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
	"github.com/recoverfleet/drsorch/internal/port/broadcast"
	"github.com/recoverfleet/drsorch/internal/port/cache"
	"github.com/recoverfleet/drsorch/internal/port/database"
	"github.com/recoverfleet/drsorch/internal/port/executionstore"
	"github.com/recoverfleet/drsorch/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ executionstore.Store  = (*mockBackend)(nil)
	_ database.Store        = (*mockDB)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ cache.Cache           = (*mockCache)(nil)
)

type mockBackend struct {
	mu         sync.Mutex
	executions map[string]*execution.Execution
	logs       map[string][]executionstore.JobLog // keyed by jobID

	logCalls    int
	cancelCalls int
	resumeCalls int

	startErr        error
	cancelErr       error
	resumeErr       error
	terminateErr    error
	terminateResult *executionstore.TerminateResult
	termStatuses    map[string]*executionstore.TerminationStatus // keyed by region
}

func newMockBackend(execs ...*execution.Execution) *mockBackend {
	b := &mockBackend{
		executions: make(map[string]*execution.Execution),
		logs:       make(map[string][]executionstore.JobLog),
	}
	for _, e := range execs {
		b.executions[e.ID] = e
	}
	return b
}

func (b *mockBackend) ListExecutions(_ context.Context) ([]execution.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]execution.Execution, 0, len(b.executions))
	for _, e := range b.executions {
		out = append(out, *e)
	}
	return out, nil
}

func (b *mockBackend) GetExecution(_ context.Context, id string) (*execution.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.executions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (b *mockBackend) GetJobLogs(_ context.Context, _, jobID string) ([]executionstore.JobLog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logCalls++
	return b.logs[jobID], nil
}

func (b *mockBackend) StartExecution(_ context.Context, planID string) (*execution.Execution, error) {
	if b.startErr != nil {
		return nil, b.startErr
	}
	e := &execution.Execution{ID: "exec-" + planID, PlanID: planID, Status: execution.StatusPending}
	b.mu.Lock()
	b.executions[e.ID] = e
	b.mu.Unlock()
	return e, nil
}

func (b *mockBackend) CancelExecution(_ context.Context, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelCalls++
	return b.cancelErr
}

func (b *mockBackend) ResumeExecution(_ context.Context, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resumeCalls++
	return b.resumeErr
}

func (b *mockBackend) TerminateRecoveryInstances(_ context.Context, _ string) (*executionstore.TerminateResult, error) {
	if b.terminateErr != nil {
		return nil, b.terminateErr
	}
	if b.terminateResult != nil {
		return b.terminateResult, nil
	}
	return &executionstore.TerminateResult{}, nil
}

func (b *mockBackend) GetTerminationStatus(_ context.Context, _ string, _ []string, region string) (*executionstore.TerminationStatus, error) {
	status, ok := b.termStatuses[region]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return status, nil
}

type mockDB struct {
	plans     map[string]*plan.RecoveryPlan
	groups    map[string]*protectiongroup.ProtectionGroup
	updateErr error
	nextID    int
}

func newMockDB() *mockDB {
	return &mockDB{
		plans:  make(map[string]*plan.RecoveryPlan),
		groups: make(map[string]*protectiongroup.ProtectionGroup),
	}
}

func (db *mockDB) ListPlans(_ context.Context) ([]plan.RecoveryPlan, error) {
	out := make([]plan.RecoveryPlan, 0, len(db.plans))
	for _, p := range db.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (db *mockDB) GetPlan(_ context.Context, id string) (*plan.RecoveryPlan, error) {
	p, ok := db.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (db *mockDB) CreatePlan(_ context.Context, p *plan.RecoveryPlan) error {
	db.nextID++
	p.ID = "plan-" + strconv.Itoa(db.nextID)
	p.Version = 1
	db.plans[p.ID] = p
	return nil
}

func (db *mockDB) UpdatePlan(_ context.Context, p *plan.RecoveryPlan) error {
	if db.updateErr != nil {
		return db.updateErr
	}
	stored, ok := db.plans[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != p.Version {
		return domain.ErrConflict
	}
	p.Version++
	db.plans[p.ID] = p
	return nil
}

func (db *mockDB) DeletePlan(_ context.Context, id string) error {
	if _, ok := db.plans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.plans, id)
	return nil
}

func (db *mockDB) ListProtectionGroups(_ context.Context) ([]protectiongroup.ProtectionGroup, error) {
	out := make([]protectiongroup.ProtectionGroup, 0, len(db.groups))
	for _, g := range db.groups {
		out = append(out, *g)
	}
	return out, nil
}

func (db *mockDB) GetProtectionGroup(_ context.Context, id string) (*protectiongroup.ProtectionGroup, error) {
	g, ok := db.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (db *mockDB) CreateProtectionGroup(_ context.Context, g *protectiongroup.ProtectionGroup) error {
	if g.ID == "" {
		db.nextID++
		g.ID = "pg-" + strconv.Itoa(db.nextID)
	}
	g.Version = 1
	db.groups[g.ID] = g
	return nil
}

func (db *mockDB) UpdateProtectionGroup(_ context.Context, g *protectiongroup.ProtectionGroup) error {
	stored, ok := db.groups[g.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != g.Version {
		return domain.ErrConflict
	}
	g.Version++
	db.groups[g.ID] = g
	return nil
}

func (db *mockDB) DeleteProtectionGroup(_ context.Context, id string) error {
	if _, ok := db.groups[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.groups, id)
	return nil
}

type publishedMessage struct {
	subject string
	data    []byte
}

type mockQueue struct {
	mu        sync.Mutex
	published []publishedMessage
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMessage{subject: subject, data: data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.published))
	for i, m := range q.published {
		out[i] = m.subject
	}
	return out
}

type broadcastEvent struct {
	eventType string
	payload   any
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastEvent{eventType: eventType, payload: payload})
}

func (m *mockBroadcaster) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.eventType == eventType {
			n++
		}
	}
	return n
}

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
	return nil
}
