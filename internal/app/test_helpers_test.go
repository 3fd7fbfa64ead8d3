package app

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/intake/internal/core/effects"
	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/ports/secondary"
)

var errBoom = errors.New("boom")

// ============================================================================
// Repositories
// ============================================================================

// mockInstructionRepository implements secondary.InstructionRepository in memory.
type mockInstructionRepository struct {
	mu           sync.Mutex
	instructions map[string]*instruction.Instruction
	getErr       error
	upsertErr    error
	upserts      int
}

func newMockInstructionRepository() *mockInstructionRepository {
	return &mockInstructionRepository{instructions: make(map[string]*instruction.Instruction)}
}

func (m *mockInstructionRepository) put(inst *instruction.Instruction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructions[inst.Ref] = inst.Clone()
}

func (m *mockInstructionRepository) Get(ctx context.Context, ref string) (*instruction.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.instructions[ref].Clone(), nil
}

func (m *mockInstructionRepository) Upsert(ctx context.Context, ref string, patch instruction.Patch) (*instruction.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.upserts++
	inst, ok := m.instructions[ref]
	if !ok {
		inst = &instruction.Instruction{Ref: ref}
		m.instructions[ref] = inst
	}
	inst.Apply(patch)
	return inst.Clone(), nil
}

func (m *mockInstructionRepository) MarkCompleted(ctx context.Context, ref string) (*instruction.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instructions[ref]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	inst.Stage = instruction.StageCompleted
	return inst.Clone(), nil
}

// mockDealRepository implements secondary.DealRepository in memory.
type mockDealRepository struct {
	mu        sync.Mutex
	byCode    *secondary.DealRecord
	latest    *secondary.DealRecord
	lookupErr error
	links     map[int64]string
	closed    []string
}

func newMockDealRepository() *mockDealRepository {
	return &mockDealRepository{links: make(map[int64]string)}
}

func (m *mockDealRepository) GetByPasscodeIncludingLinked(ctx context.Context, passcode, prospectID string) (*secondary.DealRecord, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.byCode, nil
}

func (m *mockDealRepository) GetLatest(ctx context.Context, prospectID string) (*secondary.DealRecord, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.latest, nil
}

func (m *mockDealRepository) LinkInstruction(ctx context.Context, dealID int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[dealID] = ref
	return nil
}

func (m *mockDealRepository) CloseForInstruction(ctx context.Context, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, ref)
	return 1, nil
}

// mockPaymentRepository implements secondary.PaymentRepository in memory.
type mockPaymentRepository struct {
	payments  map[string]*secondary.PaymentRecord
	createErr error
}

func newMockPaymentRepository() *mockPaymentRepository {
	return &mockPaymentRepository{payments: make(map[string]*secondary.PaymentRecord)}
}

func (m *mockPaymentRepository) Create(ctx context.Context, p *secondary.PaymentRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	c := *p
	m.payments[p.PaymentIntentID] = &c
	return nil
}

func (m *mockPaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*secondary.PaymentRecord, error) {
	p, ok := m.payments[intentID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *mockPaymentRepository) UpdateStatus(ctx context.Context, intentID, status, internalStatus string) error {
	p, ok := m.payments[intentID]
	if !ok {
		return secondary.ErrNotFound
	}
	p.Status = status
	p.InternalStatus = internalStatus
	return nil
}

// mockVerificationRepository implements secondary.VerificationRepository in memory.
type mockVerificationRepository struct {
	mu        sync.Mutex
	records   []*secondary.VerificationRecord
	createErr error
}

func (m *mockVerificationRepository) Create(ctx context.Context, r *secondary.VerificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	r.ID = int64(len(m.records) + 1)
	m.records = append(m.records, r)
	return nil
}

func (m *mockVerificationRepository) ListByInstruction(ctx context.Context, ref string) ([]*secondary.VerificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.VerificationRecord
	for _, r := range m.records {
		if r.InstructionRef == ref {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockOutboxRepository implements secondary.OutboxRepository in memory.
type mockOutboxRepository struct {
	mu       sync.Mutex
	tasks    map[string]*secondary.OutboxTask
	claimErr error
	requeued int
}

func newMockOutboxRepository() *mockOutboxRepository {
	return &mockOutboxRepository{tasks: make(map[string]*secondary.OutboxTask)}
}

func (m *mockOutboxRepository) Enqueue(ctx context.Context, task *secondary.OutboxTask) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.DedupeKey != "" {
		for _, t := range m.tasks {
			if t.DedupeKey == task.DedupeKey && !t.Status.Terminal() {
				return false, nil
			}
		}
	}
	c := *task
	c.Status = outbox.StatusQueued
	m.tasks[task.ID] = &c
	return true, nil
}

func (m *mockOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*secondary.OutboxTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	var due []*secondary.OutboxTask
	for _, t := range m.tasks {
		if t.Status == outbox.StatusQueued && !t.NextAttemptAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]*secondary.OutboxTask, 0, len(due))
	for _, t := range due {
		t.Status = outbox.StatusSending
		t.Attempts++
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockOutboxRepository) MarkSent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id].Status = outbox.StatusSent
	return nil
}

func (m *mockOutboxRepository) Fail(ctx context.Context, id string, lastErr string, next *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	t.LastError = lastErr
	if next == nil {
		t.Status = outbox.StatusFailed
		return nil
	}
	t.Status = outbox.StatusQueued
	t.NextAttemptAt = *next
	return nil
}

func (m *mockOutboxRepository) RequeueStale(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued++
	return 0, nil
}

func (m *mockOutboxRepository) List(ctx context.Context, filters secondary.OutboxFilters) ([]*secondary.OutboxTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.OutboxTask
	for _, t := range m.tasks {
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.InstructionRef != "" && t.InstructionRef != filters.InstructionRef {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockOutboxRepository) get(id string) secondary.OutboxTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tasks[id]
}

// ============================================================================
// Effects and queue
// ============================================================================

// recordingExecutor implements EffectExecutor by recording effects.
type recordingExecutor struct {
	mu       sync.Mutex
	executed []effects.Effect
	err      error
}

func (r *recordingExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, effs...)
	return r.err
}

func (r *recordingExecutor) enqueued(kind string) []effects.EnqueueEffect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []effects.EnqueueEffect
	for _, e := range r.executed {
		if enq, ok := e.(effects.EnqueueEffect); ok && enq.Kind == kind {
			out = append(out, enq)
		}
	}
	return out
}

// recordingQueue implements TaskQueue, deduplicating on key like the real outbox.
type recordingQueue struct {
	mu      sync.Mutex
	tasks   []effects.EnqueueEffect
	pending map[string]bool
	err     error
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{pending: make(map[string]bool)}
}

func (q *recordingQueue) Enqueue(ctx context.Context, eff effects.EnqueueEffect) (*secondary.OutboxTask, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, false, q.err
	}
	if eff.DedupeKey != "" {
		if q.pending[eff.DedupeKey] {
			return nil, false, nil
		}
		q.pending[eff.DedupeKey] = true
	}
	q.tasks = append(q.tasks, eff)
	return &secondary.OutboxTask{ID: "task-" + strconv.Itoa(len(q.tasks)), Kind: eff.Kind}, true, nil
}

// ============================================================================
// Outbound integrations
// ============================================================================

// stubVerificationClient implements secondary.VerificationClient.
type stubVerificationClient struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubVerificationClient) Submit(ctx context.Context, inst *instruction.Instruction) (*secondary.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, inst.Ref)
	if s.err != nil {
		return nil, s.err
	}
	return &secondary.VerificationResult{
		Provider:      "tiller",
		OverallResult: "passed",
		Raw:           []byte(`{"overallResult":{"result":"Passed"}}`),
	}, nil
}

func (s *stubVerificationClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubRenderer implements secondary.EmailRenderer.
type stubRenderer struct {
	err error
}

func (s *stubRenderer) Render(template string, inst *instruction.Instruction) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return template + " " + inst.Ref, "<p>" + inst.FirstName + "</p>", nil
}

// stubMailer implements secondary.Mailer.
type stubMailer struct {
	mu        sync.Mutex
	sent      []secondary.Email
	attempts  int
	err       error
	transport string
}

func (s *stubMailer) Send(ctx context.Context, email secondary.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, email)
	return nil
}

func (s *stubMailer) Transport() string {
	if s.transport != "" {
		return s.transport
	}
	return "stub"
}

// stubPublisher implements secondary.EventPublisher.
type stubPublisher struct {
	mu     sync.Mutex
	events []outbox.EventPayload
	err    error
}

func (s *stubPublisher) Publish(ctx context.Context, event outbox.EventPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubPublisher) eventNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Event)
	}
	return names
}

// stubGateway implements secondary.PaymentGateway.
type stubGateway struct {
	intent    *secondary.Intent
	createErr error
	lastReq   secondary.IntentRequest
	event     *secondary.WebhookEvent
	parseErr  error
}

func (s *stubGateway) CreateIntent(ctx context.Context, req secondary.IntentRequest) (*secondary.Intent, error) {
	s.lastReq = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.intent, nil
}

func (s *stubGateway) ParseWebhook(payload []byte, signatureHeader string) (*secondary.WebhookEvent, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return s.event, nil
}

var (
	_ secondary.InstructionRepository  = (*mockInstructionRepository)(nil)
	_ secondary.DealRepository         = (*mockDealRepository)(nil)
	_ secondary.PaymentRepository      = (*mockPaymentRepository)(nil)
	_ secondary.VerificationRepository = (*mockVerificationRepository)(nil)
	_ secondary.OutboxRepository       = (*mockOutboxRepository)(nil)
	_ secondary.VerificationClient     = (*stubVerificationClient)(nil)
	_ secondary.EmailRenderer          = (*stubRenderer)(nil)
	_ secondary.Mailer                 = (*stubMailer)(nil)
	_ secondary.EventPublisher         = (*stubPublisher)(nil)
	_ secondary.PaymentGateway         = (*stubGateway)(nil)
	_ EffectExecutor                   = (*recordingExecutor)(nil)
	_ TaskQueue                        = (*recordingQueue)(nil)
)
