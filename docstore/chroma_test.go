package docstore

import (
	"context"
	"sync"
	"testing"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCollection counts Add calls; embedding the interface keeps the fake
// small, unused methods just panic.
type fakeCollection struct {
	chroma.Collection

	mu       sync.Mutex
	addCalls int
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeCollection) Add(_ context.Context, _ ...chroma.CollectionUpdateOption) error {
	f.mu.Lock()
	f.addCalls++
	first := f.addCalls == 1
	f.mu.Unlock()

	if first && f.started != nil {
		close(f.started)
		<-f.release
	}
	return nil
}

func (f *fakeCollection) getAddCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addCalls
}

type fakeClient struct {
	chroma.Client

	next *fakeCollection
}

func (f *fakeClient) DeleteCollection(_ context.Context, _ string, _ ...chroma.DeleteCollectionOption) error {
	return nil
}

func (f *fakeClient) GetOrCreateCollection(_ context.Context, _ string, _ ...chroma.CreateCollectionOption) (chroma.Collection, error) {
	return f.next, nil
}

func chunkBatch(n int) []Chunk {
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, Chunk{
			Text:       "some content",
			Source:     "report.pdf",
			Page:       1,
			ChunkIndex: i,
			ChunkID:    string(rune('a' + i)),
		})
	}
	return chunks
}

func Test_ChromaStore_AddSplitsToBatches(t *testing.T) {
	col := &fakeCollection{}
	store := &ChromaStore{
		log:         testLogger(),
		requestSize: 2,
		col:         col,
	}

	require.NoError(t, store.Add(context.Background(), chunkBatch(5)))
	assert.Equal(t, 3, col.getAddCalls())
}

func Test_ChromaStore_AddEmptyIsNoop(t *testing.T) {
	col := &fakeCollection{}
	store := &ChromaStore{log: testLogger(), col: col}

	require.NoError(t, store.Add(context.Background(), nil))
	assert.Equal(t, 0, col.getAddCalls())
}

func Test_ChromaStore_ClearWaitsForAdd(t *testing.T) {
	old := &fakeCollection{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	fresh := &fakeCollection{}
	store := &ChromaStore{
		log:         testLogger(),
		client:      &fakeClient{next: fresh},
		name:        "documents",
		requestSize: 1,
		col:         old,
	}

	addDone := make(chan error, 1)
	go func() {
		addDone <- store.Add(context.Background(), chunkBatch(3))
	}()

	// Add is mid-batch now; Clear must block until it finishes.
	<-old.started
	clearDone := make(chan error, 1)
	go func() {
		clearDone <- store.Clear(context.Background())
	}()

	close(old.release)
	require.NoError(t, <-addDone)
	require.NoError(t, <-clearDone)

	// every batch landed in the collection the add started with
	assert.Equal(t, 3, old.getAddCalls())
	assert.Equal(t, 0, fresh.getAddCalls())
	assert.Same(t, fresh, store.collection().(*fakeCollection))
}
