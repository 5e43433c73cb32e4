package core

import (
	"sync"
	"time"

	"calman.com/worklog/model"
	"calman.com/worklog/utils"
)

// Projector renders a snapshot of the store. Render is called synchronously after
// each mutation, in mutation order. It must not modify the slice it is given nor
// mutate the store.
type Projector interface {
	Render(records []model.WorkLog)
}

type ProjectorFunc func(records []model.WorkLog)

func (f ProjectorFunc) Render(records []model.WorkLog) {
	f(records)
}

// RecordStore is the in-memory set of work logs the view renders from. Ids are
// unique; the slice order is insertion order and carries no meaning.
type RecordStore struct {
	mu      sync.Mutex
	records []model.WorkLog
	index   map[int64]int
	now     func() time.Time

	pubMu  sync.Mutex
	subMu  sync.Mutex
	subs   map[int]Projector
	nextID int
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		index: map[int64]int{},
		now:   time.Now,
		subs:  map[int]Projector{},
	}
}

// Subscribe registers p for change notifications and returns the function that
// removes it.
func (s *RecordStore) Subscribe(p Projector) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = p
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// ReplaceAll discards the current contents. Duplicate ids in records keep the
// first position and the last value.
func (s *RecordStore) ReplaceAll(records []model.WorkLog) {
	s.mu.Lock()
	s.records = make([]model.WorkLog, 0, len(records))
	s.index = make(map[int64]int, len(records))
	for _, r := range records {
		s.put(r.Clone(), false)
	}
	s.commit()
}

// Upsert replaces the record with the same id in place, or prepends it.
func (s *RecordStore) Upsert(r model.WorkLog) {
	s.mu.Lock()
	s.put(r.Clone(), true)
	s.commit()
}

// ReplaceExisting replaces the record with r's id and reports whether there was one.
func (s *RecordStore) ReplaceExisting(r model.WorkLog) bool {
	s.mu.Lock()
	i, ok := s.index[r.ID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.records[i] = r.Clone()
	s.commit()
	return true
}

// InsertNew prepends r unless its id is already present.
func (s *RecordStore) InsertNew(r model.WorkLog) bool {
	s.mu.Lock()
	if _, ok := s.index[r.ID]; ok {
		s.mu.Unlock()
		return false
	}
	s.put(r.Clone(), true)
	s.commit()
	return true
}

// UpsertMany upserts each record, appending new ones, with a single notification.
func (s *RecordStore) UpsertMany(records []model.WorkLog) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	for _, r := range records {
		s.put(r.Clone(), false)
	}
	s.commit()
}

// RemoveByIDs drops every matching record. Unknown ids are ignored.
func (s *RecordStore) RemoveByIDs(ids []int64) {
	drop := map[int64]bool{}
	s.mu.Lock()
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		s.mu.Unlock()
		return
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.reindex()
	s.commit()
}

// ApplyStatus sets completedAt to at (or clears it) and completedBy to actor. A
// timestamp in the future is clamped to now. Unknown ids are ignored.
func (s *RecordStore) ApplyStatus(id int64, completed bool, actor string, at time.Time) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	r := &s.records[i]
	if completed {
		if now := s.now(); at.IsZero() || at.After(now) {
			at = now
		}
		r.CompletedAt = utils.Ptr(utils.FormatISODateTime(at))
	} else {
		r.CompletedAt = nil
	}
	if actor != "" {
		r.CompletedBy = utils.Ptr(actor)
	} else {
		r.CompletedBy = nil
	}
	s.commit()
}

// Snapshot returns a copy of the current records.
func (s *RecordStore) Snapshot() []model.WorkLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *RecordStore) Get(id int64) (model.WorkLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return model.WorkLog{}, false
	}
	return s.records[i].Clone(), true
}

func (s *RecordStore) Has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *RecordStore) put(r model.WorkLog, prepend bool) {
	if i, ok := s.index[r.ID]; ok {
		s.records[i] = r
		return
	}
	if !prepend {
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
		return
	}
	s.records = append([]model.WorkLog{r}, s.records...)
	s.reindex()
}

func (s *RecordStore) reindex() {
	s.index = make(map[int64]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

func (s *RecordStore) snapshotLocked() []model.WorkLog {
	out := make([]model.WorkLog, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// commit must be called with s.mu held; it releases it. Holding pubMu across the
// unlock keeps notifications in mutation order.
func (s *RecordStore) commit() {
	snap := s.snapshotLocked()
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	s.publish(snap)
}

func (s *RecordStore) publish(snap []model.WorkLog) {
	s.subMu.Lock()
	subs := make([]Projector, 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if p, ok := s.subs[i]; ok {
			subs = append(subs, p)
		}
	}
	s.subMu.Unlock()

	for _, p := range subs {
		p.Render(snap)
	}
}
