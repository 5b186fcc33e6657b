package memory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/ragflow/logging"
)

// DefaultExtensions lists the file types indexed when none are configured.
var DefaultExtensions = []string{".txt", ".md"}

// LoaderOptions configures LoadDirectory.
type LoaderOptions struct {
	// Recursive descends into subdirectories.
	Recursive bool
	// FilenameAsID uses the slash separated path relative to the root as
	// document ID. Otherwise IDs are derived from the content hash.
	FilenameAsID bool
	// Extensions is the allow-list of file extensions (case-insensitive).
	// An empty list falls back to DefaultExtensions.
	Extensions []string
	// MaxTokens skips files larger than the embedder accepts. Zero disables the check.
	MaxTokens int
	// CountTokens measures file content against MaxTokens.
	CountTokens func(text string) int
	Logger      logging.Logger
}

// LoadDirectory reads the documents below root. Hidden files and
// directories, empty files and files over the token limit are skipped.
// Documents are returned ordered by path.
func LoadDirectory(ctx context.Context, root string, optFns ...func(o *LoaderOptions)) ([]Document, error) {
	opts := LoaderOptions{
		Extensions: DefaultExtensions,
		MaxTokens:  DefaultEmbeddingTokenLimit,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CountTokens == nil {
		opts.CountTokens = EstimateTokens
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document path %q is not a directory", root)
	}

	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if isHidden(d.Name()) || !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := string(raw)
		if strings.TrimSpace(content) == "" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if opts.MaxTokens > 0 {
			if n := opts.CountTokens(content); n > opts.MaxTokens {
				opts.Logger.Warn("memory.loader.skip", "file", rel, "tokens", n, "max_tokens", opts.MaxTokens)
				return nil
			}
		}

		id := rel
		if !opts.FilenameAsID {
			id = ContentID(content)
		}

		docs = append(docs, Document{
			ID:      id,
			Content: content,
			Metadata: map[string]string{
				"file_name": d.Name(),
				"file_path": rel,
			},
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Metadata["file_path"] < docs[j].Metadata["file_path"] })

	opts.Logger.Debug("memory.loader.loaded", "root", root, "documents", len(docs))

	return docs, nil
}

// ContentID derives a stable document ID from content.
func ContentID(content string) string {
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(content)).String()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
