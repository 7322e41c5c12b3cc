package vectorstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

// Document is one loaded unit of text with its origin.
type Document struct {
	Source  string
	Content string
	// Row is the 0-based record index for CSV documents, -1 otherwise.
	Row int
}

// ErrUnsupported is returned by LoadFile for file types with no loader.
var ErrUnsupported = errors.New("unsupported file type")

// LoadDir walks dir recursively and loads every supported file. Unsupported
// files are skipped with a log line.
func LoadDir(dir string, logger *slog.Logger) ([]Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load %s: not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		loaded, err := LoadFile(path)
		if errors.Is(err, ErrUnsupported) {
			logger.Info("skipping unsupported file", "path", path)
			return nil
		}
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	return docs, nil
}

// LoadFile loads a single .txt, .json, .csv or .html file.
func LoadFile(path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".json", ".csv", ".html", ".htm":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".csv":
		return loadCSV(f, path)
	case ".html", ".htm":
		return loadHTML(f, path)
	default:
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return []Document{{Source: path, Content: string(b), Row: -1}}, nil
	}
}

// loadCSV emits one document per record, rendered as "header: value" lines.
func loadCSV(r io.Reader, path string) ([]Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var docs []Document
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, row, err)
		}
		lines := make([]string, 0, len(rec))
		for i, v := range rec {
			key := fmt.Sprintf("column%d", i)
			if i < len(header) {
				key = strings.TrimSpace(header[i])
			}
			lines = append(lines, key+": "+strings.TrimSpace(v))
		}
		docs = append(docs, Document{Source: path, Content: strings.Join(lines, "\n"), Row: row})
	}
	return docs, nil
}

func loadHTML(r io.Reader, path string) ([]Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	article, err := readability.FromReader(r, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var b strings.Builder
	if title := article.Title(); title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	if err := article.RenderText(&b); err != nil {
		return nil, fmt.Errorf("%s: render: %w", path, err)
	}
	return []Document{{Source: path, Content: b.String(), Row: -1}}, nil
}
