// Package knowledge implements the vector knowledge collection the domain
// expert reads from. Documents are stored in sqlite with JSON-serialized
// embeddings; search uses cosine similarity when an embedding engine is
// configured and falls back to keyword overlap otherwise. The collection is
// read-only at conversation time; writes happen through ingestion.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"atelier/internal/embedding"
	"atelier/internal/logging"
)

// Document is one passage in the collection.
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResult is a retrieved passage with its similarity to the query.
type SearchResult struct {
	Document
	Similarity float64 `json:"similarity"`
}

// Store is the sqlite-backed vector collection.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	engine embedding.Engine
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	embedding TEXT,
	metadata TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
`

// Open opens (or creates) the collection at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Knowledge("Opened knowledge collection at %s", path)
	return &Store{db: db}, nil
}

// SetEmbeddingEngine configures the embedding engine. Must be called before
// Add for documents to be embedded; a nil engine keeps keyword-only mode.
func (s *Store) SetEmbeddingEngine(engine embedding.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts or replaces documents, embedding them when an engine is set.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		var embeddingJSON interface{}
		if s.engine != nil {
			vec, err := s.engine.Embed(ctx, doc.Content)
			if err != nil {
				logging.Get(logging.CategoryKnowledge).Warn("embedding failed for %s, storing keyword-only: %v", doc.ID, err)
			} else {
				data, err := json.Marshal(vec)
				if err != nil {
					return fmt.Errorf("failed to serialize embedding: %w", err)
				}
				embeddingJSON = string(data)
			}
		}

		metaJSON, _ := json.Marshal(doc.Metadata)

		_, err := s.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO documents (id, content, embedding, metadata) VALUES (?, ?, ?, ?)",
			doc.ID, doc.Content, embeddingJSON, string(metaJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
		}
	}

	logging.KnowledgeDebug("Added %d documents", len(docs))
	return nil
}

// Search returns up to nResults passages with similarity >= minSimilarity,
// ordered by similarity descending. Semantic search when an embedding engine
// is configured; keyword-overlap fallback otherwise.
func (s *Store) Search(ctx context.Context, query string, nResults int, minSimilarity float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if nResults <= 0 {
		nResults = 5
	}

	timer := logging.StartTimer(logging.CategoryKnowledge, "Search")
	defer timer.Stop()

	if s.engine != nil {
		results, err := s.searchSemantic(ctx, query, nResults, minSimilarity)
		if err == nil {
			return results, nil
		}
		logging.Get(logging.CategoryKnowledge).Warn("semantic search failed, falling back to keywords: %v", err)
	}

	return s.searchKeyword(ctx, query, nResults, minSimilarity)
}

func (s *Store) searchSemantic(ctx context.Context, query string, nResults int, minSimilarity float64) ([]SearchResult, error) {
	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, embedding, metadata FROM documents WHERE embedding IS NOT NULL",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var doc Document
		var embeddingJSON, metaJSON string
		if err := rows.Scan(&doc.ID, &doc.Content, &embeddingJSON, &metaJSON); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			continue
		}

		sim, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		if sim < minSimilarity {
			continue
		}

		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &doc.Metadata)
		}

		results = append(results, SearchResult{Document: doc, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > nResults {
		results = results[:nResults]
	}
	return results, nil
}

// searchKeyword scores documents by content-word overlap with the query,
// normalized to [0,1] over the query's token count.
func (s *Store) searchKeyword(ctx context.Context, query string, nResults int, minSimilarity float64) ([]SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, content, metadata FROM documents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var doc Document
		var metaJSON string
		if err := rows.Scan(&doc.ID, &doc.Content, &metaJSON); err != nil {
			continue
		}

		docTokens := tokenize(doc.Content)
		overlap := 0
		for tok := range queryTokens {
			if docTokens[tok] {
				overlap++
			}
		}
		sim := float64(overlap) / float64(len(queryTokens))
		if sim < minSimilarity {
			continue
		}

		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &doc.Metadata)
		}
		results = append(results, SearchResult{Document: doc, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > nResults {
		results = results[:nResults]
	}
	return results, nil
}

// Stats returns collection counts.
func (s *Store) Stats() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	var total, embedded int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&total); err != nil {
		return nil, err
	}
	s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE embedding IS NOT NULL").Scan(&embedded)

	stats["total_documents"] = total
	stats["with_embeddings"] = embedded
	stats["without_embeddings"] = total - embedded

	if s.engine != nil {
		stats["embedding_engine"] = s.engine.Name()
		stats["embedding_dimensions"] = s.engine.Dimensions()
	} else {
		stats["embedding_engine"] = "none (keyword search)"
	}

	return stats, nil
}

// tokenize lowercases and splits text into content words, dropping stop words
// and short tokens.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, raw := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		if len(raw) < 3 || stopWords[raw] {
			continue
		}
		tokens[raw] = true
	}
	return tokens
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true,
	"your": true, "how": true, "them": true, "then": true, "than": true,
	"some": true, "into": true, "its": true, "also": true, "been": true,
	"were": true, "does": true, "just": true, "should": true, "could": true,
}
