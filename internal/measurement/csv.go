package measurement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TimestampFormat is the layout of the first CSV column.
const TimestampFormat = "2006-01-02 15:04:05.000000"

// ErrInvalidName is returned for measurement names that cannot be used as file names.
var ErrInvalidName = errors.New("invalid measurement name")

// CSVWriter appends records to <dir>/<measurement name>.csv.
// There is no header row; each line is "<timestamp>,<value>".
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates dir if needed and returns a writer rooted at it.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// Dir returns the output directory.
func (w *CSVWriter) Dir() string {
	return w.dir
}

// Path returns the file a measurement name is persisted to.
func (w *CSVWriter) Path(name string) string {
	return filepath.Join(w.dir, name+".csv")
}

// Write appends one record. The file is opened and closed per call so each
// line is on disk before the engine moves on.
func (w *CSVWriter) Write(name string, rec Record) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	f, err := os.OpenFile(w.Path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{rec.Timestamp.Format(TimestampFormat), FormatValue(rec.Value)}); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

// FormatValue renders a value so that numeric values parse back exactly.
// float32 is widened first, so the file holds the same number ToFloat
// reports for the in-memory value.
func FormatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// ReadCSV loads a file written by CSVWriter. Values are returned as strings;
// use ToFloat for numeric measurements.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		ts, err := time.ParseInLocation(TimestampFormat, row[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		records = append(records, Record{Timestamp: ts, Value: row[1]})
	}
	return records, nil
}
