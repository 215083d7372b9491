package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-articles/models"
)

// CSVWriter writes records to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"title", "url", "date", "content"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends articles to the CSV output.
func (cw *CSVWriter) Write(articles []*models.Article) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, article := range articles {
		record := []string{
			article.Title,
			article.URL,
			article.Date,
			article.Content,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.file.Name())
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes all records as one indented JSON array. Elements are
// streamed into a temp file next to the target; Close terminates the array
// and renames it into place, so the target path only ever holds a complete
// array.
type JSONWriter struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	count  int
	closed bool
	mu     sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	return &JSONWriter{
		path:   filename,
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Write appends articles to the array. Non-ASCII text and HTML characters
// are written literally.
func (jw *JSONWriter) Write(articles []*models.Article) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return fmt.Errorf("json writer closed")
	}

	for _, article := range articles {
		element, err := encodeElement(article)
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}

		sep := ",\n  "
		if jw.count == 0 {
			sep = "[\n  "
		}
		if _, err := jw.writer.WriteString(sep); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		if _, err := jw.writer.Write(element); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		jw.count++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close terminates the array, flushes buffers and moves the file to its
// final path.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return nil
	}
	jw.closed = true

	tail := "\n]\n"
	if jw.count == 0 {
		tail = "[]\n"
	}
	if _, err := jw.writer.WriteString(tail); err != nil {
		jw.discard()
		return fmt.Errorf("write json array end: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		jw.discard()
		return fmt.Errorf("flush json writer: %w", err)
	}
	if err := jw.file.Chmod(0o644); err != nil {
		jw.discard()
		return fmt.Errorf("chmod json file: %w", err)
	}
	if err := jw.file.Close(); err != nil {
		os.Remove(jw.file.Name())
		return fmt.Errorf("close json file: %w", err)
	}
	if err := os.Rename(jw.file.Name(), jw.path); err != nil {
		os.Remove(jw.file.Name())
		return fmt.Errorf("move json file into place: %w", err)
	}
	return nil
}

func (jw *JSONWriter) discard() {
	jw.file.Close()
	os.Remove(jw.file.Name())
}

// Validate ensures the JSON file has data at its final path.
func (jw *JSONWriter) Validate() error {
	info, err := os.Stat(jw.path)
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// encodeElement renders one array element indented two levels deep,
// without the trailing newline json.Encoder appends.
func encodeElement(article *models.Article) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("  ", "  ")
	if err := enc.Encode(article); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
