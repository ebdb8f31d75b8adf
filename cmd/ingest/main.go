// Command ingest builds the retrieval knowledge base: it reads source
// documents (JSON collections, PDF or plain text), chunks them, embeds
// each chunk and saves everything to the Postgres store.
//
// Usage: ingest FILE...
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ledongthuc/pdf"

	"mcq-agents/internal/app"
	"mcq-agents/internal/chunker"
	"mcq-agents/internal/store"
)

// document is one source unit in a JSON collection file.
type document struct {
	Title  string   `json:"title"`
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ingest FILE...")
		os.Exit(2)
	}

	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	if deps.Store == nil {
		deps.Log.Error("ingest requires RETRIEVER_PROVIDER=postgres")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total := 0
	for _, path := range os.Args[1:] {
		n, err := ingestFile(ctx, deps, path)
		if err != nil {
			deps.Log.Error("ingest failed", "file", path, "err", err)
			os.Exit(1)
		}
		deps.Log.Info("ingested", "file", path, "passages", n)
		total += n
	}

	count, err := deps.Store.CountPassages(ctx)
	if err != nil {
		deps.Log.Warn("failed to count passages", "err", err)
	}
	deps.Log.Info("ingest finished", "added", total, "total", count)
}

func ingestFile(ctx context.Context, deps app.Deps, path string) (int, error) {
	docs, err := loadDocuments(deps, path)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, doc := range docs {
		n, err := ingestDocument(ctx, deps, doc)
		if err != nil {
			return added, err
		}
		added += n
	}
	return added, nil
}

func loadDocuments(deps app.Deps, path string) ([]document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var docs []document
		if err := json.Unmarshal(content, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode document collection: %w", err)
		}
		return docs, nil
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return nil, fmt.Errorf("pdf extraction failed: %w", err)
		}
		return []document{{Title: filepath.Base(path), Text: text, Source: path}}, nil
	default:
		// Treat other files as plain text
		return []document{{Title: filepath.Base(path), Text: string(content), Source: path}}, nil
	}
}

func ingestDocument(ctx context.Context, deps app.Deps, doc document) (int, error) {
	chunks := chunker.ChunkText(doc.Text, chunker.Options{
		MaxTokens: deps.Config.RefineChunkWords,
		Overlap:   deps.Config.RefineChunkWords / 10,
	})
	if len(chunks) == 0 {
		return 0, nil
	}

	passages := make([]store.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = store.Passage{
			Title:  doc.Title,
			Source: doc.Source,
			Tags:   doc.Tags,
			Text:   c.Text,
		}
	}
	saved, err := deps.Store.SavePassages(ctx, passages)
	if err != nil {
		return 0, fmt.Errorf("failed to save passages: %w", err)
	}

	for _, p := range saved {
		vec, err := deps.Embedder.Embed(ctx, p.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed passage %s: %w", p.ID, err)
		}
		if err := deps.Store.SaveEmbedding(ctx, store.Embedding{
			PassageID: p.ID,
			Vector:    vec,
			Model:     deps.Config.EmbeddingModel,
		}); err != nil {
			return 0, fmt.Errorf("failed to save embedding %s: %w", p.ID, err)
		}
	}
	return len(saved), nil
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}
	return textBuilder.String(), nil
}
