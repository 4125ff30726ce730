package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	"github.com/cassiomorais/edi-gateway/internal/domain/queue"
	"github.com/google/uuid"
)

// snapshotter is implemented by the in-memory repositories so that
// MockTransactionManager can roll them back.
type snapshotter interface {
	snapshot() (restore func())
}

// --- Message Repository Mock ---

// MockMessageRepository is an in-memory implementation of message.Repository.
// Stored values are copies; callers never share memory with the store.
type MockMessageRepository struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*message.OutgoingMessage

	AddFunc         func(ctx context.Context, msg *message.OutgoingMessage) error
	GetByBundleFunc func(ctx context.Context, bundleID uuid.UUID) ([]*message.OutgoingMessage, error)
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{messages: make(map[uuid.UUID]*message.OutgoingMessage)}
}

func (m *MockMessageRepository) Add(ctx context.Context, msg *message.OutgoingMessage) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; ok {
		return errors.ErrMessageAlreadyQueued
	}
	m.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*message.OutgoingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, errors.ErrMessageNotFound
	}
	return cloneMessage(msg), nil
}

func (m *MockMessageRepository) GetByBundle(ctx context.Context, bundleID uuid.UUID) ([]*message.OutgoingMessage, error) {
	if m.GetByBundleFunc != nil {
		return m.GetByBundleFunc(ctx, bundleID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*message.OutgoingMessage
	for _, msg := range m.messages {
		if msg.AssignedBundleID != nil && *msg.AssignedBundleID == bundleID {
			out = append(out, cloneMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BundlePosition < out[j].BundlePosition })
	return out, nil
}

func (m *MockMessageRepository) DeleteByBundles(ctx context.Context, bundleIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := idSet(bundleIDs)
	var n int64
	for id, msg := range m.messages {
		if msg.AssignedBundleID == nil {
			continue
		}
		if _, ok := ids[*msg.AssignedBundleID]; ok {
			delete(m.messages, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored messages.
func (m *MockMessageRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// All returns copies of every stored message.
func (m *MockMessageRepository) All() []*message.OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*message.OutgoingMessage, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, cloneMessage(msg))
	}
	return out
}

func (m *MockMessageRepository) snapshot() func() {
	m.mu.Lock()
	saved := make(map[uuid.UUID]*message.OutgoingMessage, len(m.messages))
	for k, v := range m.messages {
		saved[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.messages = saved
		m.mu.Unlock()
	}
}

// --- Bundle Repository Mock ---

// MockBundleRepository is an in-memory implementation of bundle.Repository
// with the same version and uniqueness checks as the PostgreSQL one.
type MockBundleRepository struct {
	mu      sync.Mutex
	bundles map[uuid.UUID]*bundle.Bundle

	CreateFunc      func(ctx context.Context, b *bundle.Bundle) error
	UpdateFunc      func(ctx context.Context, b *bundle.Bundle) error
	NextForPeekFunc func(ctx context.Context, receiver actor.Actor, types []message.DocumentType) (*bundle.Bundle, error)
	DeleteByIDsFunc func(ctx context.Context, ids []uuid.UUID) (int64, error)
}

func NewMockBundleRepository() *MockBundleRepository {
	return &MockBundleRepository{bundles: make(map[uuid.UUID]*bundle.Bundle)}
}

// AddBundle seeds a bundle without any checks.
func (m *MockBundleRepository) AddBundle(b *bundle.Bundle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[b.ID] = cloneBundle(b)
}

func (m *MockBundleRepository) Create(ctx context.Context, b *bundle.Bundle) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bundles[b.ID]; ok {
		return errors.ErrOptimisticLockFailed
	}
	if b.AcceptsMessages() && m.acceptingLocked(b.Key(), b.ID) != nil {
		return errors.ErrOptimisticLockFailed
	}
	m.bundles[b.ID] = cloneBundle(b)
	return nil
}

func (m *MockBundleRepository) GetByID(ctx context.Context, id uuid.UUID) (*bundle.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[id]
	if !ok {
		return nil, errors.ErrBundleNotFound
	}
	return cloneBundle(b), nil
}

func (m *MockBundleRepository) GetAccepting(ctx context.Context, key message.BundleKey) (*bundle.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.acceptingLocked(key, uuid.Nil); b != nil {
		return cloneBundle(b), nil
	}
	return nil, nil
}

func (m *MockBundleRepository) GetByMessageID(ctx context.Context, messageID string) (*bundle.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bundles {
		if b.MessageID != nil && *b.MessageID == messageID {
			return cloneBundle(b), nil
		}
	}
	return nil, errors.ErrBundleNotFound
}

func (m *MockBundleRepository) NextForPeek(ctx context.Context, receiver actor.Actor, types []message.DocumentType) (*bundle.Bundle, error) {
	if m.NextForPeekFunc != nil {
		return m.NextForPeekFunc(ctx, receiver, types)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := queue.ActorMessageQueue{Receiver: receiver}
	all := make([]*bundle.Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		all = append(all, b)
	}
	if b := q.NextForPeek(all, types); b != nil {
		return cloneBundle(b), nil
	}
	return nil, nil
}

func (m *MockBundleRepository) Update(ctx context.Context, b *bundle.Bundle) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.bundles[b.ID]
	if !ok || current.Version != b.Version-1 {
		return errors.ErrOptimisticLockFailed
	}
	m.bundles[b.ID] = cloneBundle(b)
	return nil
}

func (m *MockBundleRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*bundle.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*bundle.Bundle
	for _, b := range m.bundles {
		if b.CanBePurged(cutoff) {
			out = append(out, cloneBundle(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DequeuedAt.Before(*out[j].DequeuedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockBundleRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if m.DeleteByIDsFunc != nil {
		return m.DeleteByIDsFunc(ctx, ids)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if b, ok := m.bundles[id]; ok && b.IsDequeued() {
			delete(m.bundles, id)
			n++
		}
	}
	return n, nil
}

// All returns copies of every stored bundle.
func (m *MockBundleRepository) All() []*bundle.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*bundle.Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		out = append(out, cloneBundle(b))
	}
	return out
}

// Save overwrites a bundle bypassing the version check.
func (m *MockBundleRepository) Save(b *bundle.Bundle) {
	m.AddBundle(b)
}

func (m *MockBundleRepository) acceptingLocked(key message.BundleKey, except uuid.UUID) *bundle.Bundle {
	for _, b := range m.bundles {
		if b.ID != except && b.Key() == key && b.AcceptsMessages() {
			return b
		}
	}
	return nil
}

func (m *MockBundleRepository) snapshot() func() {
	m.mu.Lock()
	saved := make(map[uuid.UUID]*bundle.Bundle, len(m.bundles))
	for k, v := range m.bundles {
		saved[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.bundles = saved
		m.mu.Unlock()
	}
}

// --- Document Repository Mock ---

type documentKey struct {
	bundleID uuid.UUID
	format   message.DocumentFormat
}

// MockDocumentRepository is an in-memory implementation of document.Repository.
type MockDocumentRepository struct {
	mu   sync.Mutex
	docs map[documentKey]*document.MarketDocument

	AddFunc func(ctx context.Context, doc *document.MarketDocument) error
}

func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{docs: make(map[documentKey]*document.MarketDocument)}
}

func (m *MockDocumentRepository) Add(ctx context.Context, doc *document.MarketDocument) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, doc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := documentKey{doc.BundleID, doc.Format}
	if _, ok := m.docs[k]; ok {
		return errors.ErrOptimisticLockFailed
	}
	m.docs[k] = cloneDocument(doc)
	return nil
}

func (m *MockDocumentRepository) Get(ctx context.Context, bundleID uuid.UUID, format message.DocumentFormat) (*document.MarketDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentKey{bundleID, format}]
	if !ok {
		return nil, errors.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

func (m *MockDocumentRepository) ListByBundles(ctx context.Context, bundleIDs []uuid.UUID) ([]*document.MarketDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := idSet(bundleIDs)
	var out []*document.MarketDocument
	for k, doc := range m.docs {
		if _, ok := ids[k.bundleID]; ok {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

func (m *MockDocumentRepository) DeleteByBundles(ctx context.Context, bundleIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := idSet(bundleIDs)
	var n int64
	for k := range m.docs {
		if _, ok := ids[k.bundleID]; ok {
			delete(m.docs, k)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored documents.
func (m *MockDocumentRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MockDocumentRepository) snapshot() func() {
	m.mu.Lock()
	saved := make(map[documentKey]*document.MarketDocument, len(m.docs))
	for k, v := range m.docs {
		saved[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.docs = saved
		m.mu.Unlock()
	}
}

// --- Document Storage Mock ---

// MockDocumentStorage keeps document bytes in memory, keyed by blob name.
type MockDocumentStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte

	StoreFunc func(ctx context.Context, doc *document.MarketDocument) error
	PurgeFunc func(ctx context.Context, docs []*document.MarketDocument) error
}

func NewMockDocumentStorage() *MockDocumentStorage {
	return &MockDocumentStorage{blobs: make(map[string][]byte)}
}

func (m *MockDocumentStorage) Store(ctx context.Context, doc *document.MarketDocument) error {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, doc)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := doc.BlobName()
	m.blobs[name] = append([]byte(nil), doc.Payload...)
	doc.BlobRef = &name
	doc.Payload = nil
	return nil
}

func (m *MockDocumentStorage) Load(ctx context.Context, doc *document.MarketDocument) ([]byte, error) {
	if doc.BlobRef == nil {
		return doc.Payload, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[*doc.BlobRef]
	if !ok {
		return nil, errors.ErrDocumentNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MockDocumentStorage) Purge(ctx context.Context, docs []*document.MarketDocument) error {
	if m.PurgeFunc != nil {
		return m.PurgeFunc(ctx, docs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if doc.BlobRef != nil {
			delete(m.blobs, *doc.BlobRef)
		}
	}
	return nil
}

// BlobCount returns the number of stored blobs.
func (m *MockDocumentStorage) BlobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// --- Transaction Manager Mock ---

type txMarker struct{}

// MockTransactionManager runs one transaction at a time. Tracked in-memory
// repositories are restored when fn fails, nested calls behave like savepoints.
type MockTransactionManager struct {
	mu      sync.Mutex
	tracked []snapshotter

	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewMockTransactionManager tracks every argument that is one of this
// package's in-memory repositories.
func NewMockTransactionManager(repos ...any) *MockTransactionManager {
	m := &MockTransactionManager{}
	for _, r := range repos {
		if s, ok := r.(snapshotter); ok {
			m.tracked = append(m.tracked, s)
		}
	}
	return m
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ctx.Value(txMarker{}) == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		ctx = context.WithValue(ctx, txMarker{}, true)
	}

	restores := make([]func(), 0, len(m.tracked))
	for _, s := range m.tracked {
		restores = append(restores, s.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := *entry
	m.entries = append(m.entries, &e)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.entries {
		if e.Status != outbox.StatusPublished && e.RetryCount < e.MaxRetries {
			c := *e
			out = append(out, &c)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			now := time.Now()
			e.Status = outbox.StatusPublished
			e.PublishedAt = &now
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = outbox.StatusFailed
			e.RetryCount++
		}
	}
	return nil
}

// Entries returns copies of the stored entries in insertion order.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*outbox.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		c := *e
		out = append(out, &c)
	}
	return out
}

// EventTypes returns the event type of every stored entry in insertion order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.EventType)
	}
	return out
}

func (m *MockOutboxRepository) snapshot() func() {
	m.mu.Lock()
	saved := append([]*outbox.Entry(nil), m.entries...)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.entries = saved
		m.mu.Unlock()
	}
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
