// Copyright 2022 dtnet
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage holds bundles until they are delivered or expire. The
// store enforces a byte capacity, keeps a priority-ordered dispatch index,
// expires bundles by lifetime, and persists every bundle as one blob through
// the asynchronous datastore engine. At startup the on-disk state is
// restored, so a crash loses at most the writes still queued.
package storage

import (
	"errors"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/pkg/private/serrors"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/storage/datastore"
)

// Filter selects MetaBundles during a priority-ordered iteration.
type Filter interface {
	// ShouldAdd reports whether the MetaBundle belongs in the result.
	ShouldAdd(bundle.MetaBundle) bool
	// Limit caps the number of results. Zero means unlimited.
	Limit() int
}

// Config configures a Store.
type Config struct {
	// Workdir is the datastore directory, one blob file per bundle.
	Workdir string
	// MaxBytes caps the accounted bundle bytes. Zero means unbounded.
	MaxBytes uint64
	// BufferLimit bounds the datastore's task queue.
	BufferLimit int
	// LocalEID is the custodian written into bundles that request custody.
	LocalEID eid.EID
}

type pendingEntry struct {
	bundle *bundle.Bundle
	meta   bundle.MetaBundle
}

type storedEntry struct {
	meta bundle.MetaBundle
	hash datastore.Hash
}

// Store is the persistent bundle store. All indexes are guarded by one
// reader-writer lock; the datastore worker reports completions through the
// callback methods, which take the same lock.
type Store struct {
	cfg  Config
	bus  *event.Bus
	log  log.Logger
	data *datastore.Store

	mu sync.RWMutex
	// pending holds bundles whose write has not landed yet, keyed by hash.
	pending map[string]pendingEntry
	// hashes maps on-disk blobs back to their MetaBundle.
	hashes map[string]bundle.MetaBundle
	// byID indexes every held bundle by its canonical ID string.
	byID map[string]storedEntry
	// sizes records the accounted size per bundle ID.
	sizes map[string]uint64
	// used is the running sum of sizes.
	used uint64
	// prio is the dispatch queue: priority desc, expiration asc, ID asc.
	prio *metaIndex
	// exp orders the same bundles by expiration for the lifetime sweep.
	exp *metaIndex
}

// New creates a store over the configured working directory. Start must be
// called to restore persisted bundles and launch the datastore worker.
func New(cfg Config, bus *event.Bus) (*Store, error) {
	s := &Store{
		cfg:     cfg,
		bus:     bus,
		log:     log.New("comp", "storage"),
		pending: make(map[string]pendingEntry),
		hashes:  make(map[string]bundle.MetaBundle),
		byID:    make(map[string]storedEntry),
		sizes:   make(map[string]uint64),
		prio:    newMetaIndex(bundle.MetaBundle.Less),
		exp:     newMetaIndex(bundle.MetaBundle.ExpiresEarlier),
	}
	data, err := datastore.New(s, cfg.Workdir, cfg.BufferLimit)
	if err != nil {
		return nil, err
	}
	s.data = data
	return s, nil
}

// Start restores the persisted bundles and launches the datastore worker.
func (s *Store) Start() error {
	if err := s.data.IterateAll(); err != nil {
		return err
	}
	s.data.Start()
	s.bus.Subscribe(s)
	s.log.Info("Bundles restored", "count", s.Count())
	return nil
}

// Close drains the datastore queue, stops the worker and unsubscribes from
// the bus.
func (s *Store) Close() {
	s.bus.Unsubscribe(s)
	s.data.Wait()
	s.data.Stop()
}

// Store accepts a bundle. The size is computed by a dry-run serialization
// and accounted immediately; the write happens asynchronously. If the bundle
// requests custody, the custodian is rewritten to the local endpoint before
// the bundle is persisted and a CustodyAccepted event is published.
func (s *Store) Store(b *bundle.Bundle) error {
	size, err := b.Len()
	if err != nil {
		return err
	}

	stored := b
	acceptCustody := b.Primary.Flags.Has(bundle.FlagCustodyRequested) &&
		b.Primary.Custodian != s.cfg.LocalEID
	if acceptCustody {
		stored = b.Copy()
		stored.Primary.Custodian = s.cfg.LocalEID
	}

	meta := bundle.NewMeta(stored, size)
	key := meta.ID.String()
	hash := datastore.NewHash(key)

	s.mu.Lock()
	if _, ok := s.byID[key]; ok {
		s.mu.Unlock()
		s.log.Debug("Bundle already held", "id", key)
		return nil
	}
	if s.cfg.MaxBytes > 0 && s.used+size > s.cfg.MaxBytes {
		used := s.used
		s.mu.Unlock()
		return serrors.Join(ErrStorageFull, nil,
			"id", key, "size", size, "used", used, "max", s.cfg.MaxBytes)
	}
	s.used += size
	s.pending[hash.Value] = pendingEntry{bundle: stored, meta: meta}
	s.byID[key] = storedEntry{meta: meta, hash: hash}
	s.sizes[key] = size
	s.prio.insert(meta)
	s.exp.insert(meta)
	s.updateMetricsLocked()
	s.mu.Unlock()

	s.data.Store(hash, &bundleContainer{bundle: stored})

	if acceptCustody {
		s.bus.Publish(event.CustodyAccepted{ID: meta.ID, Custodian: s.cfg.LocalEID})
	}
	s.log.Debug("Bundle stored", "id", key, "size", size)
	return nil
}

// Get returns the full bundle for the ID. Bundles whose write is still
// pending are served from memory, everything else is read from disk. A
// bundle that cannot be deserialized is evicted.
func (s *Store) Get(id bundle.ID) (*bundle.Bundle, error) {
	key := id.String()

	s.mu.RLock()
	e, ok := s.byID[key]
	if !ok {
		s.mu.RUnlock()
		return nil, serrors.Join(ErrNoBundleFound, nil, "id", key)
	}
	if p, ok := s.pending[e.hash.Value]; ok {
		b := p.bundle.Copy()
		s.mu.RUnlock()
		return b, nil
	}
	blob, err := s.data.Retrieve(e.hash)
	s.mu.RUnlock()

	if err != nil {
		if errors.Is(err, datastore.ErrDataNotAvailable) {
			return nil, serrors.Join(ErrNoBundleFound, err, "id", key)
		}
		return nil, err
	}

	var b bundle.Bundle
	if err := b.Unmarshal(blob.Data); err != nil {
		s.log.Error("Error while loading bundle data", "id", key, "err", err)
		// the bundle is broken, delete it
		if rmErr := s.Remove(id); rmErr != nil {
			s.log.Error("Evicting broken bundle failed", "id", key, "err", rmErr)
		}
		return nil, serrors.Join(ErrBundleLoad, err, "id", key)
	}

	// age the bundle by the time it rested in the blob
	if _, ok := b.Block(bundle.BlockTypeAge); ok {
		if delta := blob.AccessTime.Sub(blob.ModTime); delta > 0 {
			if err := b.AddAge(uint64(delta.Seconds())); err != nil {
				return nil, serrors.Join(ErrBundleLoad, err, "id", key)
			}
		}
	}
	return &b, nil
}

// GetMatching iterates the priority index in dispatch order and collects
// the MetaBundles accepted by the filter, up to the filter's limit.
func (s *Store) GetMatching(f Filter) []bundle.MetaBundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []bundle.MetaBundle
	limit := f.Limit()
	for _, meta := range s.prio.items {
		if limit > 0 && len(result) >= limit {
			break
		}
		if f.ShouldAdd(meta) {
			result = append(result, meta)
		}
	}
	return result
}

// Remove drops the bundle from the indexes and queues the on-disk delete.
func (s *Store) Remove(id bundle.ID) error {
	key := id.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[key]
	if !ok {
		return serrors.Join(ErrNoBundleFound, nil, "id", key)
	}
	s.removeLocked(e)
	return nil
}

// RemoveMatching removes and returns the first MetaBundle in dispatch order
// whose canonical string is contained in the Bloom filter.
func (s *Store) RemoveMatching(f *bloom.BloomFilter) (bundle.MetaBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, meta := range s.prio.items {
		if f.TestString(meta.ID.String()) {
			s.removeLocked(s.byID[meta.ID.String()])
			return meta, nil
		}
	}
	return bundle.MetaBundle{}, serrors.Join(ErrNoBundleFound, nil, "filter", "bloom")
}

// Clear queues deletion of every bundle and resets all indexes and the
// accounting.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byID {
		s.data.Remove(e.hash)
	}
	s.pending = make(map[string]pendingEntry)
	s.hashes = make(map[string]bundle.MetaBundle)
	s.byID = make(map[string]storedEntry)
	s.sizes = make(map[string]uint64)
	s.used = 0
	s.prio.clear()
	s.exp.clear()
	s.updateMetricsLocked()
}

// Count returns the number of bundles currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prio.len()
}

// Empty reports whether the store holds no bundles.
func (s *Store) Empty() bool {
	return s.Count() == 0
}

// UsedBytes returns the accounted bundle bytes.
func (s *Store) UsedBytes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// ReleaseCustody is invoked when custody was transferred to another node.
// It is safe to delete the bundle now; whether to do so depends on the
// routing algorithm, so this is a hook only.
func (s *Store) ReleaseCustody(custodian eid.EID, id bundle.ID) {
}

// DistinctDestinations returns the set of destination endpoints of the held
// bundles. Placeholder, currently always empty.
func (s *Store) DistinctDestinations() []eid.EID {
	return nil
}

// HandleTimeTick advances the expiration sweep: every bundle whose
// expiration has passed is dropped and announced.
func (s *Store) HandleTimeTick(e event.TimeTick) {
	var expired []bundle.MetaBundle

	s.mu.Lock()
	for s.exp.len() > 0 {
		meta := s.exp.items[0]
		if meta.Expiration > e.Timestamp {
			break
		}
		s.removeLocked(s.byID[meta.ID.String()])
		expired = append(expired, meta)
	}
	s.mu.Unlock()

	for _, meta := range expired {
		metricExpired.Inc()
		s.log.Debug("Bundle lifetime expired", "id", meta.ID, "expiration", meta.Expiration)
		s.bus.Publish(event.BundleEvent{
			ID:     meta.ID,
			Action: event.BundleDeleted,
			Reason: event.LifetimeExpired,
		})
		s.bus.Publish(event.BundleExpired{ID: meta.ID})
	}
}

// removeLocked drops the entry from the request-time indexes and queues the
// on-disk delete. The accounting and the hash index are released when the
// datastore reports the blob gone. Callers hold the write lock.
func (s *Store) removeLocked(e storedEntry) {
	delete(s.byID, e.meta.ID.String())
	s.prio.remove(e.meta)
	s.exp.remove(e.meta)
	s.data.Remove(e.hash)
	s.updateMetricsLocked()
}

// BlobRestored re-indexes one persisted bundle at startup. Undecodable or
// over-capacity blobs are deleted.
func (s *Store) BlobRestored(hash datastore.Hash, blob *datastore.Blob) {
	var b bundle.Bundle
	if err := b.Unmarshal(blob.Data); err != nil {
		s.log.Error("Unable to restore bundle", "hash", hash.Value, "err", err)
		s.data.Remove(hash)
		return
	}
	size := blob.Size()
	meta := bundle.NewMeta(&b, size)
	key := meta.ID.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxBytes > 0 && s.used+size > s.cfg.MaxBytes {
		s.log.Error("Dropping restored bundle, capacity exceeded",
			"id", key, "size", size, "used", s.used, "max", s.cfg.MaxBytes)
		s.data.Remove(hash)
		return
	}
	s.used += size
	s.hashes[hash.Value] = meta
	s.byID[key] = storedEntry{meta: meta, hash: hash}
	s.sizes[key] = size
	s.prio.insert(meta)
	s.exp.insert(meta)
	s.updateMetricsLocked()
}

// BlobStored promotes the bundle from pending to stored.
func (s *Store) BlobStored(hash datastore.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[hash.Value]
	if !ok {
		return
	}
	delete(s.pending, hash.Value)
	s.hashes[hash.Value] = p.meta
}

// BlobStoreFailed rolls the failed write back: the accounting is freed and
// all indexes drop the bundle.
func (s *Store) BlobStoreFailed(hash datastore.Hash, err error) {
	s.log.Error("Bundle store failed", "hash", hash.Value, "err", err)
	metricStoreFailures.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[hash.Value]
	if !ok {
		return
	}
	key := p.meta.ID.String()
	s.used -= s.sizes[key]
	delete(s.sizes, key)
	delete(s.pending, hash.Value)
	delete(s.byID, key)
	s.prio.remove(p.meta)
	s.exp.remove(p.meta)
	s.updateMetricsLocked()
}

// BlobRemoved frees the accounted space of the removed blob.
func (s *Store) BlobRemoved(hash datastore.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.hashes[hash.Value]
	if !ok {
		return
	}
	key := meta.ID.String()
	s.used -= s.sizes[key]
	delete(s.sizes, key)
	delete(s.hashes, hash.Value)
	s.updateMetricsLocked()
}

// BlobRemoveFailed is log-only: the indexes were already updated when the
// removal was requested.
func (s *Store) BlobRemoveFailed(hash datastore.Hash, err error) {
	s.log.Error("Bundle remove failed", "hash", hash.Value, "err", err)
}

func (s *Store) updateMetricsLocked() {
	metricBundles.Set(float64(s.prio.len()))
	metricUsedBytes.Set(float64(s.used))
}

var _ datastore.Callback = (*Store)(nil)
