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

package datastore_test

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dtnet/dtnd/private/storage/datastore"
)

type byteContainer struct {
	key  string
	data []byte
	err  error
}

func (c *byteContainer) Key() string { return c.key }

func (c *byteContainer) Serialize(w io.Writer) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := w.Write(c.data)
	return int64(n), err
}

type recordingCallback struct {
	mu           sync.Mutex
	restored     map[string][]byte
	stored       []datastore.Hash
	storeFailed  []datastore.Hash
	removed      []datastore.Hash
	removeFailed []datastore.Hash
}

func newRecordingCallback() *recordingCallback {
	return &recordingCallback{restored: make(map[string][]byte)}
}

func (r *recordingCallback) BlobRestored(h datastore.Hash, b *datastore.Blob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored[h.Value] = b.Data
}

func (r *recordingCallback) BlobStored(h datastore.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, h)
}

func (r *recordingCallback) BlobStoreFailed(h datastore.Hash, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeFailed = append(r.storeFailed, h)
}

func (r *recordingCallback) BlobRemoved(h datastore.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, h)
}

func (r *recordingCallback) BlobRemoveFailed(h datastore.Hash, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFailed = append(r.removeFailed, h)
}

func TestStoreRetrieveRemove(t *testing.T) {
	defer goleak.VerifyNone(t)

	cb := newRecordingCallback()
	ds, err := datastore.New(cb, t.TempDir(), 16)
	require.NoError(t, err)
	ds.Start()

	hash := datastore.NewHash("dtn://src/app-1000-1")
	ds.Store(hash, &byteContainer{key: "dtn://src/app-1000-1", data: []byte("payload")})
	ds.Wait()

	require.Equal(t, []datastore.Hash{hash}, cb.stored)

	blob, err := ds.Retrieve(hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), blob.Data)
	assert.Equal(t, uint64(7), blob.Size())
	assert.False(t, blob.AccessTime.Before(blob.ModTime))

	ds.Remove(hash)
	ds.Wait()
	require.Equal(t, []datastore.Hash{hash}, cb.removed)

	_, err = ds.Retrieve(hash)
	assert.ErrorIs(t, err, datastore.ErrDataNotAvailable)

	ds.Stop()
}

func TestStoreFailedCleansUp(t *testing.T) {
	cb := newRecordingCallback()
	ds, err := datastore.New(cb, t.TempDir(), 16)
	require.NoError(t, err)
	ds.Start()
	defer ds.Stop()

	hash := datastore.NewHash("broken")
	ds.Store(hash, &byteContainer{key: "broken", err: errors.New("stream went bad")})
	ds.Wait()

	require.Len(t, cb.storeFailed, 1)
	_, err = ds.Retrieve(hash)
	assert.ErrorIs(t, err, datastore.ErrDataNotAvailable)
}

func TestRemoveMissingReportsFailure(t *testing.T) {
	cb := newRecordingCallback()
	ds, err := datastore.New(cb, t.TempDir(), 16)
	require.NoError(t, err)
	ds.Start()
	defer ds.Stop()

	ds.Remove(datastore.NewHash("never-stored"))
	ds.Wait()
	assert.Len(t, cb.removeFailed, 1)
	assert.Empty(t, cb.removed)
}

func TestIterateAll(t *testing.T) {
	dir := t.TempDir()

	cb := newRecordingCallback()
	ds, err := datastore.New(cb, dir, 16)
	require.NoError(t, err)
	ds.Start()
	ds.Store(datastore.NewHash("one"), &byteContainer{key: "one", data: []byte("1")})
	ds.Store(datastore.NewHash("two"), &byteContainer{key: "two", data: []byte("2")})
	ds.Wait()
	ds.Stop()

	// restart over the same directory
	cb2 := newRecordingCallback()
	ds2, err := datastore.New(cb2, dir, 16)
	require.NoError(t, err)
	require.NoError(t, ds2.IterateAll())

	assert.Equal(t, map[string][]byte{
		datastore.NewHash("one").Value: []byte("1"),
		datastore.NewHash("two").Value: []byte("2"),
	}, cb2.restored)
}

func TestHashIsStable(t *testing.T) {
	a := datastore.NewHash("dtn://src/app-1-2")
	b := datastore.NewHash("dtn://src/app-1-2")
	c := datastore.NewHash("dtn://src/app-1-3")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.Value, 16)
}
