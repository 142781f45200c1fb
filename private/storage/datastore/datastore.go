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

// Package datastore is the asynchronous blob-on-disk engine backing the
// bundle store. Each blob is one file in the working directory, named by the
// content-addressed hash of its key. Writes and deletes are executed by a
// single worker goroutine; completion is reported through the Callback
// interface on that goroutine.
//
// The engine holds a non-owning reference to its callback object. The
// callback's lifetime must strictly contain the engine's.
package datastore

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/pkg/private/serrors"
)

var (
	// ErrDataNotAvailable is returned by Retrieve when no blob exists for
	// the hash.
	ErrDataNotAvailable = errors.New("data not available")
	// ErrSerializationFailed is reported through BlobStoreFailed when a
	// container could not be written out completely.
	ErrSerializationFailed = errors.New("serialization failed")
)

// Hash names a blob. Value is the content-addressed file name derived from
// the container key.
type Hash struct {
	Value string
}

// NewHash derives the blob name for a container key.
func NewHash(key string) Hash {
	h := fnv.New64a()
	_, _ = io.WriteString(h, key)
	return Hash{Value: fmt.Sprintf("%016x", h.Sum64())}
}

// Container is a unit of data handed to the engine for storage.
type Container interface {
	// Key returns the stable identity of the contained data.
	Key() string
	// Serialize writes the data to w and returns the number of bytes
	// written. A short write must be reported as an error.
	Serialize(w io.Writer) (int64, error)
}

// Blob is the result of a synchronous read.
type Blob struct {
	Data []byte
	// ModTime is the time the blob was written.
	ModTime time.Time
	// AccessTime is the time this read happened.
	AccessTime time.Time
}

// Size returns the length of the blob in bytes.
func (b *Blob) Size() uint64 {
	return uint64(len(b.Data))
}

// Callback receives completion notifications and the startup iteration.
// All methods are invoked on the engine's worker goroutine, except
// BlobRestored which runs on the goroutine calling IterateAll.
type Callback interface {
	// BlobRestored is invoked for each persisted blob during IterateAll.
	BlobRestored(hash Hash, blob *Blob)
	// BlobStored reports a completed write.
	BlobStored(hash Hash)
	// BlobStoreFailed reports a failed write. The partial file is removed.
	BlobStoreFailed(hash Hash, err error)
	// BlobRemoved reports a completed delete.
	BlobRemoved(hash Hash)
	// BlobRemoveFailed reports a failed delete.
	BlobRemoveFailed(hash Hash, err error)
}

type taskKind int

const (
	taskStore taskKind = iota
	taskRemove
	taskBarrier
)

type task struct {
	kind      taskKind
	hash      Hash
	container Container
	barrier   chan struct{}
}

// Store is the blob engine. Create it with New, then Start the worker.
type Store struct {
	dir   string
	cb    Callback
	tasks chan task
	done  chan struct{}
	log   log.Logger
}

// DefaultBufferLimit bounds the task queue when the configuration does not.
const DefaultBufferLimit = 1024

// New creates an engine rooted at dir, creating the directory if needed.
// bufferLimit bounds the number of queued tasks; zero selects the default.
func New(cb Callback, dir string, bufferLimit int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, serrors.Wrap("creating datastore directory", err, "dir", dir)
	}
	if bufferLimit <= 0 {
		bufferLimit = DefaultBufferLimit
	}
	return &Store{
		dir:   dir,
		cb:    cb,
		tasks: make(chan task, bufferLimit),
		done:  make(chan struct{}),
		log:   log.New("comp", "datastore"),
	}, nil
}

// Start launches the worker goroutine.
func (s *Store) Start() {
	go func() {
		defer log.HandlePanic()
		s.run()
	}()
}

// Store queues an asynchronous write of the container under the given hash.
// Completion is reported via BlobStored or BlobStoreFailed.
func (s *Store) Store(hash Hash, c Container) {
	s.tasks <- task{kind: taskStore, hash: hash, container: c}
}

// Remove queues an asynchronous delete of the blob. Completion is reported
// via BlobRemoved or BlobRemoveFailed.
func (s *Store) Remove(hash Hash) {
	s.tasks <- task{kind: taskRemove, hash: hash}
}

// Retrieve synchronously reads the blob for the hash.
func (s *Store) Retrieve(hash Hash) (*Blob, error) {
	path := filepath.Join(s.dir, hash.Value)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.Join(ErrDataNotAvailable, nil, "hash", hash.Value)
		}
		return nil, serrors.Wrap("reading blob", err, "hash", hash.Value)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading blob", err, "hash", hash.Value)
	}
	return &Blob{
		Data:       data,
		ModTime:    info.ModTime(),
		AccessTime: time.Now(),
	}, nil
}

// IterateAll synchronously scans the working directory and reports every
// existing blob via BlobRestored. It is intended to run at startup, before
// Start.
func (s *Store) IterateAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return serrors.Wrap("scanning datastore directory", err, "dir", s.dir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		hash := Hash{Value: entry.Name()}
		blob, err := s.Retrieve(hash)
		if err != nil {
			s.log.Error("Skipping unreadable blob", "hash", hash.Value, "err", err)
			continue
		}
		s.cb.BlobRestored(hash, blob)
	}
	return nil
}

// Wait blocks until all tasks queued before the call have been executed.
func (s *Store) Wait() {
	barrier := make(chan struct{})
	s.tasks <- task{kind: taskBarrier, barrier: barrier}
	<-barrier
}

// Stop shuts the worker down. Tasks still queued are executed before Stop
// returns.
func (s *Store) Stop() {
	close(s.tasks)
	<-s.done
}

func (s *Store) run() {
	defer close(s.done)
	for t := range s.tasks {
		switch t.kind {
		case taskStore:
			s.execStore(t)
		case taskRemove:
			s.execRemove(t)
		case taskBarrier:
			close(t.barrier)
		}
	}
}

func (s *Store) execStore(t task) {
	path := filepath.Join(s.dir, t.hash.Value)
	if err := s.writeBlob(path, t.container); err != nil {
		_ = os.Remove(path)
		s.cb.BlobStoreFailed(t.hash, err)
		return
	}
	s.cb.BlobStored(t.hash)
}

func (s *Store) writeBlob(path string, c Container) error {
	f, err := os.Create(path)
	if err != nil {
		return serrors.Join(ErrSerializationFailed, err, "path", path)
	}
	n, serr := c.Serialize(f)
	if cerr := f.Close(); serr == nil {
		serr = cerr
	}
	if serr != nil {
		return serrors.Join(ErrSerializationFailed, serr, "path", path, "written", n)
	}
	return nil
}

func (s *Store) execRemove(t task) {
	path := filepath.Join(s.dir, t.hash.Value)
	if err := os.Remove(path); err != nil {
		s.cb.BlobRemoveFailed(t.hash, serrors.Wrap("removing blob", err, "hash", t.hash.Value))
		return
	}
	s.cb.BlobRemoved(t.hash)
}
