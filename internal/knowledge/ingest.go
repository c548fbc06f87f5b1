package knowledge

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"atelier/internal/logging"
)

// chunkSize is the approximate character length of one ingested passage.
const chunkSize = 1200

// IngestDir reads every .txt and .md file under dir, splits each into
// paragraph-aligned chunks, and adds them to the collection. Returns the
// number of documents added.
func (s *Store) IngestDir(ctx context.Context, dir string) (int, error) {
	var docs []Document

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		rel, _ := filepath.Rel(dir, path)
		for i, chunk := range chunkText(string(data)) {
			sum := sha1.Sum([]byte(chunk))
			docs = append(docs, Document{
				ID:      fmt.Sprintf("%s#%d-%x", rel, i, sum[:6]),
				Content: chunk,
				Metadata: map[string]interface{}{
					"source": rel,
					"chunk":  i,
				},
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.Add(ctx, docs); err != nil {
		return 0, err
	}

	logging.Knowledge("Ingested %d passages from %s", len(docs), dir)
	return len(docs), nil
}

// Watch re-ingests files in dir as they are created or modified, until ctx is
// cancelled. Intended for development setups where reference documents are
// dropped into the knowledge directory while the tutor runs.
func (s *Store) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				ext := strings.ToLower(filepath.Ext(event.Name))
				if ext != ".txt" && ext != ".md" {
					continue
				}
				logging.Knowledge("Knowledge file changed: %s", event.Name)
				if _, err := s.IngestDir(ctx, dir); err != nil {
					logging.Get(logging.CategoryKnowledge).Error("re-ingest failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryKnowledge).Warn("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// chunkText splits text into paragraph-aligned chunks of roughly chunkSize
// characters. Paragraphs larger than the chunk size become their own chunk.
func chunkText(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > chunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
