// Package tabular reads and writes delimited text files whose first line is
// a header of column names.
//
// Quoting follows encoding/csv: a field containing the delimiter, a quote or
// a newline is quoted and embedded quotes are doubled. A UTF-8 byte order
// mark at the start of an input file is dropped.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"topicetl/internal/convert"
)

// Options controls the delimited format.
type Options struct {
	Comma rune // field delimiter; zero means ','
}

func (o Options) comma() rune {
	if o.Comma == 0 {
		return ','
	}
	return o.Comma
}

// ParseComma turns a configured delimiter string into a rune. "" means ',';
// "\t" and "tab" mean a tab.
func ParseComma(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab", "\t":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("tabular: invalid delimiter %q", s)
	}
	return r, nil
}

// Writer writes a header followed by one line per row.
type Writer struct {
	cw      *csv.Writer
	out     io.Writer
	closer  io.Closer
	columns []string
	rows    int
}

// NewWriter writes the header line to w immediately. If w is an io.Closer it
// is closed by Close.
func NewWriter(w io.Writer, columns []string, opt Options) (*Writer, error) {
	cw := csv.NewWriter(w)
	cw.Comma = opt.comma()
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("tabular: write header: %w", err)
	}
	tw := &Writer{cw: cw, out: w, columns: append([]string(nil), columns...)}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}
	return tw, nil
}

// Write appends one row. Cells are written in header order; a cell whose
// column is not in the header is an error.
func (w *Writer) Write(row convert.Row) error {
	rec := make([]string, len(w.columns))
	if sameOrder(row, w.columns) {
		for i, c := range row {
			rec[i] = c.Value
		}
	} else {
		for _, c := range row {
			i := indexOf(w.columns, c.Column)
			if i < 0 {
				return fmt.Errorf("tabular: unknown column %q", c.Column)
			}
			rec[i] = c.Value
		}
	}
	if len(rec) == 1 && rec[0] == "" {
		// csv writes a lone empty field as a blank line, which readers skip.
		if err := w.writeEmptyRow(); err != nil {
			return fmt.Errorf("tabular: write row %d: %w", w.rows+1, err)
		}
		w.rows++
		return nil
	}
	if err := w.cw.Write(rec); err != nil {
		return fmt.Errorf("tabular: write row %d: %w", w.rows+1, err)
	}
	w.rows++
	return nil
}

func (w *Writer) writeEmptyRow() error {
	if err := w.Flush(); err != nil {
		return err
	}
	line := "\"\"\n"
	if w.cw.UseCRLF {
		line = "\"\"\r\n"
	}
	_, err := io.WriteString(w.out, line)
	return err
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int { return w.rows }

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// Close flushes and closes the underlying writer when it is closable.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
		w.closer = nil
	}
	return err
}

// Reader reads rows keyed by the header line.
type Reader struct {
	cr      *csv.Reader
	closer  io.Closer
	columns []string
	line    int
}

// NewReader consumes the header line from r. A leading BOM is dropped and
// header names are trimmed and NFC-normalized so they match mapping columns
// typed on another platform.
func NewReader(r io.Reader, opt Options) (*Reader, error) {
	tr := transform.NewReader(r, xunicode.BOMOverride(transform.Nop))
	cr := csv.NewReader(tr)
	cr.Comma = opt.comma()
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("tabular: missing header line")
		}
		return nil, fmt.Errorf("tabular: read header: %w", err)
	}
	cols := make([]string, len(h))
	for i, name := range h {
		cols[i] = norm.NFC.String(strings.TrimSpace(name))
	}
	out := &Reader{cr: cr, columns: cols, line: 1}
	if c, ok := r.(io.Closer); ok {
		out.closer = c
	}
	return out, nil
}

// Columns returns the header names.
func (r *Reader) Columns() []string { return r.columns }

// Line returns the line on which the last record read starts (the header
// is line 1).
func (r *Reader) Line() int { return r.line }

// Next returns the next row, or io.EOF after the last one. A line whose
// field count differs from the header is an error.
func (r *Reader) Next() (convert.Row, error) {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.line = pe.StartLine
		}
		return nil, fmt.Errorf("tabular: %w", err)
	}
	r.line, _ = r.cr.FieldPos(0)
	if len(rec) != len(r.columns) {
		return nil, fmt.Errorf("tabular: line %d: got %d fields; want %d", r.line, len(rec), len(r.columns))
	}
	return convert.RowOf(r.columns, rec), nil
}

// Close closes the underlying reader when it is closable.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func sameOrder(row convert.Row, cols []string) bool {
	if len(row) != len(cols) {
		return false
	}
	for i, c := range row {
		if c.Column != cols[i] {
			return false
		}
	}
	return true
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
