package main

import (
	"context"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/finsight/ragqa/rag"
	"github.com/finsight/ragqa/readers"
)

// Ingester is the slice of the answering pipeline the registry needs:
// replace a document's chunks and drop them again.
type Ingester interface {
	Ingest(ctx context.Context, source string, pages []rag.Page) (int, error)
	Remove(ctx context.Context, source string) error
}

// DocRegistry keeps the index in step with the documents in the upload
// directory. Sync reconciles the full directory; Watch reacts to changes as
// they happen. Files are identified by their path relative to the root and
// re-ingested only when their content checksum changes.
type DocRegistry struct {
	log              *slog.Logger
	root             string
	ingester         Ingester
	readers          []readers.FileReader
	mergeEventsDelay time.Duration

	mu    sync.Mutex
	known map[string]uint32
}

func NewDocRegistry(root string, ingester Ingester, mergeEventsDelay time.Duration, log *slog.Logger) *DocRegistry {
	return &DocRegistry{
		log:              log,
		root:             root,
		ingester:         ingester,
		mergeEventsDelay: mergeEventsDelay,
		known:            make(map[string]uint32),
	}
}

func (dr *DocRegistry) RegisterReader(rs ...readers.FileReader) {
	dr.readers = append(dr.readers, rs...)
}

type diskDoc struct {
	crc   uint32
	pages []rag.Page
}

// Sync walks the root directory and reconciles the index with what it
// finds: new and changed files are ingested, vanished files are removed.
// Unreadable files are logged and skipped so one broken upload cannot
// block the rest.
func (dr *DocRegistry) Sync(ctx context.Context) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	disk, err := dr.collectDocs()
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dr.root, err)
	}

	for source, doc := range disk {
		crc, ok := dr.known[source]
		if ok && crc == doc.crc {
			continue
		}

		if _, err := dr.ingester.Ingest(ctx, source, doc.pages); err != nil {
			dr.log.Error("failed to ingest document", "source", source, "error", err)
			continue
		}
		dr.known[source] = doc.crc
	}

	for source := range dr.known {
		if _, ok := disk[source]; ok {
			continue
		}

		if err := dr.ingester.Remove(ctx, source); err != nil {
			dr.log.Error("failed to remove document", "source", source, "error", err)
			continue
		}
		delete(dr.known, source)
	}

	return nil
}

// Watch starts a background goroutine that resyncs after changes in the
// root directory. Bursts of events (editors write, rename and chmod in
// quick succession) are merged into a single resync.
func (dr *DocRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dr.root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dr.root, err)
	}

	delay := dr.mergeEventsDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	go func() {
		defer watcher.Close()

		timer := time.NewTimer(delay)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(delay)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				dr.log.Error("watcher error", "error", err)
			case <-timer.C:
				if err := dr.Sync(ctx); err != nil {
					dr.log.Error("failed to resync documents", "error", err)
				}
			}
		}
	}()

	return nil
}

func (dr *DocRegistry) collectDocs() (map[string]diskDoc, error) {
	disk := make(map[string]diskDoc)

	err := filepath.Walk(dr.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		reader := dr.findReader(path)
		if reader == nil {
			dr.log.Warn("unsupported file", "path", path)
			return nil
		}

		pages, err := reader.ReadPages(path)
		if err != nil {
			dr.log.Error("failed to read document", "path", path, "error", err)
			return nil
		}

		source, err := filepath.Rel(dr.root, path)
		if err != nil {
			source = filepath.Base(path)
		}

		disk[source] = diskDoc{
			crc:   pagesChecksum(pages),
			pages: toRagPages(pages),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return disk, nil
}

func (dr *DocRegistry) findReader(path string) readers.FileReader {
	for _, r := range dr.readers {
		if r.CanRead(path) {
			return r
		}
	}
	return nil
}

func pagesChecksum(pages []readers.Page) uint32 {
	h := crc32.NewIEEE()
	for _, p := range pages {
		h.Write([]byte(p.Text))
		h.Write([]byte{0})
	}
	return h.Sum32()
}

func toRagPages(pages []readers.Page) []rag.Page {
	out := make([]rag.Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, rag.Page{Number: p.Number, Text: p.Text})
	}
	return out
}
