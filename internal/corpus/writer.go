package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"legalrag/internal/domain"
)

// JSONLWriter streams one chunk object per line. It never holds more than one
// record in memory and is the default sink.
type JSONLWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{buf: buf, enc: enc}
}

func (w *JSONLWriter) Write(chunk domain.Chunk) error {
	return w.enc.Encode(chunk)
}

// Close flushes buffered lines. The underlying writer is not closed.
func (w *JSONLWriter) Close() error {
	return w.buf.Flush()
}

// JSONArrayWriter buffers every chunk and writes a single indented array on
// Close. Memory grows with the corpus; use only for small collections.
type JSONArrayWriter struct {
	w      io.Writer
	chunks []domain.Chunk
}

func NewJSONArrayWriter(w io.Writer) *JSONArrayWriter {
	return &JSONArrayWriter{w: w, chunks: []domain.Chunk{}}
}

func (w *JSONArrayWriter) Write(chunk domain.Chunk) error {
	w.chunks = append(w.chunks, chunk)
	return nil
}

func (w *JSONArrayWriter) Close() error {
	enc := json.NewEncoder(w.w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(w.chunks)
}

// NewSink returns the writer for format ("jsonl" or "json").
func NewSink(format string, w io.Writer) (domain.ChunkSink, error) {
	switch format {
	case "jsonl", "":
		return NewJSONLWriter(w), nil
	case "json":
		return NewJSONArrayWriter(w), nil
	default:
		return nil, fmt.Errorf("corpus: unknown output format %q", format)
	}
}

// LoadChunks reads chunks written by either sink. A leading '[' selects the
// array form; anything else is read as JSON lines.
func LoadChunks(r io.Reader) ([]domain.Chunk, error) {
	br := bufio.NewReader(r)
	var first byte
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			first = b
			_ = br.UnreadByte()
			break
		}
	}
	dec := json.NewDecoder(br)
	if first == '[' {
		var chunks []domain.Chunk
		if err := dec.Decode(&chunks); err != nil {
			return nil, fmt.Errorf("corpus: decode chunk array: %w", err)
		}
		return chunks, nil
	}
	var chunks []domain.Chunk
	for {
		var c domain.Chunk
		err := dec.Decode(&c)
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("corpus: decode chunk %d: %w", len(chunks)+1, err)
		}
		chunks = append(chunks, c)
	}
}
