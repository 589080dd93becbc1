package repository

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"kirim/internal/domain/repository"
	"kirim/pkg/errors"
)

// MemoryStore is an in-process RealtimeStore with the same delivery semantics
// as the remote one: full snapshot on attach and after every change, child
// change notifications, and disconnect-triggered writes. It backs development
// mode and every subscription test.
type MemoryStore struct {
	mu sync.Mutex

	// collection -> insertion-ordered children
	order  map[string][]string
	values map[string]map[string]json.RawMessage

	collSubs  map[string]map[int]*collectionSub
	childSubs map[string]map[int]func(repository.Child)
	nextSubID int

	pending []disconnectWrite
}

type collectionSub struct {
	query      repository.Query
	onSnapshot func(repository.Snapshot)
	onError    func(error)
}

type disconnectWrite struct {
	path  string
	value json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		order:     make(map[string][]string),
		values:    make(map[string]map[string]json.RawMessage),
		collSubs:  make(map[string]map[int]*collectionSub),
		childSubs: make(map[string]map[int]func(repository.Child)),
	}
}

func (s *MemoryStore) SubscribeCollection(path string, q repository.Query, onSnapshot func(repository.Snapshot), onError func(error)) repository.Disposer {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.collSubs[path] == nil {
		s.collSubs[path] = make(map[int]*collectionSub)
	}
	sub := &collectionSub{query: q, onSnapshot: onSnapshot, onError: onError}
	s.collSubs[path][id] = sub
	snap := s.buildSnapshot(path, q)
	s.mu.Unlock()

	// Initial snapshot fires immediately on attach, like the remote store.
	onSnapshot(snap)

	return func() {
		s.mu.Lock()
		delete(s.collSubs[path], id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) SubscribeChildChanged(path string, onChange func(repository.Child)) repository.Disposer {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.childSubs[path] == nil {
		s.childSubs[path] = make(map[int]func(repository.Child))
	}
	s.childSubs[path][id] = onChange
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.childSubs[path], id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) Write(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.BadRequest("Failed to encode value", err)
	}

	collection, key, field, ok := splitPath(path)
	if !ok {
		return errors.BadRequest("Invalid store path: "+path, nil)
	}

	s.mu.Lock()
	existed := s.hasChild(collection, key)
	if field == "" {
		s.setChild(collection, key, raw)
	} else {
		s.setField(collection, key, field, raw)
	}
	s.mu.Unlock()

	s.notify(collection, key, existed)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	collection, key, field, ok := splitPath(path)
	if !ok || field != "" {
		return errors.BadRequest("Invalid store path: "+path, nil)
	}

	s.mu.Lock()
	existed := s.hasChild(collection, key)
	for name, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			s.mu.Unlock()
			return errors.BadRequest("Failed to encode field "+name, err)
		}
		s.setField(collection, key, name, raw)
	}
	s.mu.Unlock()

	s.notify(collection, key, existed)
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, path string, value interface{}) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", errors.BadRequest("Failed to encode value", err)
	}
	if strings.Contains(path, "/") {
		return "", errors.BadRequest("Append expects a collection path: "+path, nil)
	}

	key := uuid.New().String()

	s.mu.Lock()
	s.setChild(path, key, raw)
	s.mu.Unlock()

	s.notify(path, key, false)
	return key, nil
}

func (s *MemoryStore) RegisterOnDisconnect(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.BadRequest("Failed to encode value", err)
	}

	s.mu.Lock()
	s.pending = append(s.pending, disconnectWrite{path: path, value: raw})
	s.mu.Unlock()
	return nil
}

// SimulateDisconnect applies every registered on-disconnect write, the way the
// remote store does server-side when a client drops without an orderly close.
func (s *MemoryStore) SimulateDisconnect() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, w := range pending {
		var v interface{}
		_ = json.Unmarshal(w.value, &v)
		_ = s.Write(context.Background(), w.path, v)
	}
}

// FailCollection delivers a terminal error to every collection subscriber of
// path and removes them, emulating a subscription-level store failure.
func (s *MemoryStore) FailCollection(path string, err error) {
	s.mu.Lock()
	subs := s.collSubs[path]
	s.collSubs[path] = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

// --- internals ---

func (s *MemoryStore) hasChild(collection, key string) bool {
	_, ok := s.values[collection][key]
	return ok
}

func (s *MemoryStore) setChild(collection, key string, raw json.RawMessage) {
	if s.values[collection] == nil {
		s.values[collection] = make(map[string]json.RawMessage)
	}
	if _, ok := s.values[collection][key]; !ok {
		s.order[collection] = append(s.order[collection], key)
	}
	s.values[collection][key] = raw
}

func (s *MemoryStore) setField(collection, key, field string, raw json.RawMessage) {
	var obj map[string]json.RawMessage
	if existing, ok := s.values[collection][key]; ok {
		_ = json.Unmarshal(existing, &obj)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	obj[field] = raw
	merged, _ := json.Marshal(obj)
	s.setChild(collection, key, merged)
}

// notify delivers the updated snapshot to collection subscribers and, when the
// child already existed, a child-changed event. Called without the lock held.
func (s *MemoryStore) notify(collection, key string, existed bool) {
	s.mu.Lock()
	raw := s.values[collection][key]
	type delivery struct {
		snap repository.Snapshot
		fn   func(repository.Snapshot)
	}
	var deliveries []delivery
	for _, sub := range s.collSubs[collection] {
		deliveries = append(deliveries, delivery{snap: s.buildSnapshot(collection, sub.query), fn: sub.onSnapshot})
	}
	var changed []func(repository.Child)
	if existed {
		for _, fn := range s.childSubs[collection] {
			changed = append(changed, fn)
		}
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.snap)
	}
	child := repository.Child{Key: key, Raw: raw}
	for _, fn := range changed {
		fn(child)
	}
}

// buildSnapshot applies the query to the collection's current children.
// Caller holds the lock.
func (s *MemoryStore) buildSnapshot(collection string, q repository.Query) repository.Snapshot {
	return orderedSnapshot(s.order[collection], s.values[collection], q)
}

func splitPath(path string) (collection, key, field string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", true
	case 3:
		return parts[0], parts[1], parts[2], true
	default:
		return "", "", "", false
	}
}
