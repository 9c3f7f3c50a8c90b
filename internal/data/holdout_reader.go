package data

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ErrFileParse marks a hold-out file that contributed no rows.
var ErrFileParse = errors.New("hold-out file parse error")

// HoldOutRecord is one pixel of a hold-out grid. Geographic fields keep
// their exact decimal representation.
type HoldOutRecord struct {
	ID    string
	X     float64
	Y     float64
	MapX  decimal.Decimal
	MapY  decimal.Decimal
	Lat   decimal.Decimal
	Lon   decimal.Decimal
	Red   float64
	Green float64
	Blue  float64
}

// HoldOutFeatures returns an n×3 matrix with columns Red, Green, Blue.
func HoldOutFeatures(records []HoldOutRecord) *mat.Dense {
	if len(records) == 0 {
		return &mat.Dense{}
	}
	X := mat.NewDense(len(records), len(FeatureColumns), nil)
	for i, r := range records {
		X.SetRow(i, []float64{r.Red, r.Green, r.Blue})
	}
	return X
}

type HoldOutOptions struct {
	Pattern     string
	HeaderLines int
	MaxFields   int
	// MinColumns is the narrowest file width that is parsed at all.
	MinColumns int
}

func DefaultHoldOutOptions() HoldOutOptions {
	return HoldOutOptions{
		Pattern:     "*.txt",
		HeaderLines: 6,
		MaxFields:   13,
		MinColumns:  len(HoldOutSchema),
	}
}

type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

type RowDiagnostic struct {
	File   string
	Line   int
	Reason string
}

type FileSummary struct {
	File    string
	Columns int
	Rows    int
	Kept    int
}

type HoldOutResult struct {
	Records      []HoldOutRecord
	Files        []FileSummary
	SkippedFiles []*FileError
	DroppedRows  []RowDiagnostic
}

// Err combines the per-file failures, or returns nil when every file parsed.
func (r *HoldOutResult) Err() error {
	var err error
	for _, fe := range r.SkippedFiles {
		err = multierr.Append(err, fe)
	}
	return err
}

type HoldOutReader struct {
	opts   HoldOutOptions
	logger *zap.Logger
}

func NewHoldOutReader(opts HoldOutOptions, logger *zap.Logger) *HoldOutReader {
	defaults := DefaultHoldOutOptions()
	if opts.Pattern == "" {
		opts.Pattern = defaults.Pattern
	}
	if opts.HeaderLines < 0 {
		opts.HeaderLines = defaults.HeaderLines
	}
	if opts.MaxFields < len(HoldOutSchema) {
		opts.MaxFields = defaults.MaxFields
	}
	if opts.MinColumns < len(HoldOutSchema) {
		opts.MinColumns = defaults.MinColumns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HoldOutReader{opts: opts, logger: logger}
}

// ReadDir parses every matching file in dir, in lexical order. Files that
// cannot be read or are too narrow are skipped and reported in the
// result; only an unreadable directory is an error.
func (hr *HoldOutReader) ReadDir(dir string) (*HoldOutResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("hold-out directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("hold-out directory: %s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, hr.opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("hold-out pattern %q: %w", hr.opts.Pattern, err)
	}

	result := &HoldOutResult{}
	for _, path := range matches {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			continue
		}

		records, dropped, summary, err := hr.ReadFile(path)
		if err != nil {
			var fe *FileError
			if !errors.As(err, &fe) {
				fe = &FileError{File: path, Err: fmt.Errorf("%w: %v", ErrFileParse, err)}
			}
			hr.logger.Warn("skipping hold-out file", zap.String("file", path), zap.Error(fe.Err))
			result.SkippedFiles = append(result.SkippedFiles, fe)
			continue
		}

		for _, d := range dropped {
			hr.logger.Debug("dropped hold-out row",
				zap.String("file", d.File), zap.Int("line", d.Line), zap.String("reason", d.Reason))
		}
		result.Records = append(result.Records, records...)
		result.DroppedRows = append(result.DroppedRows, dropped...)
		result.Files = append(result.Files, summary)
	}

	hr.logger.Info("parsed hold-out directory",
		zap.String("dir", dir),
		zap.Int("files", len(result.Files)),
		zap.Int("skipped_files", len(result.SkippedFiles)),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped_rows", len(result.DroppedRows)))
	return result, nil
}

type rawRow struct {
	line   int
	fields []string
}

// ReadFile parses a single hold-out file. A file whose widest row has
// fewer columns than the schema fails with ErrFileParse; narrower rows
// and rows that do not coerce are dropped with a diagnostic.
func (hr *HoldOutReader) ReadFile(path string) ([]HoldOutRecord, []RowDiagnostic, FileSummary, error) {
	summary := FileSummary{File: path}
	fail := func(format string, args ...any) error {
		return &FileError{File: path, Err: fmt.Errorf("%w: %s", ErrFileParse, fmt.Sprintf(format, args...))}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, summary, fail("%v", err)
	}
	defer file.Close()

	var rows []rawRow
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line <= hr.opts.HeaderLines {
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) > hr.opts.MaxFields {
			fields = fields[:hr.opts.MaxFields]
		}
		rows = append(rows, rawRow{line: line, fields: fields})
		if len(fields) > summary.Columns {
			summary.Columns = len(fields)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, summary, fail("read error: %v", err)
	}

	if len(rows) == 0 {
		return nil, nil, summary, fail("no data rows after %d header lines", hr.opts.HeaderLines)
	}
	if summary.Columns < hr.opts.MinColumns {
		return nil, nil, summary, fail("only %d columns, need at least %d", summary.Columns, hr.opts.MinColumns)
	}

	records := make([]HoldOutRecord, 0, len(rows))
	var dropped []RowDiagnostic
	for _, row := range rows {
		rec, err := recordFromFields(row.fields)
		if err != nil {
			dropped = append(dropped, RowDiagnostic{File: path, Line: row.line, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}

	summary.Rows = len(rows)
	summary.Kept = len(records)
	return records, dropped, summary, nil
}

func recordFromFields(fields []string) (HoldOutRecord, error) {
	values, err := coerceRow(HoldOutSchema, fields)
	if err != nil {
		return HoldOutRecord{}, err
	}

	num := func(i int) decimal.Decimal { return values[i].(decimal.Decimal) }
	return HoldOutRecord{
		ID:    values[0].(string),
		X:     num(1).InexactFloat64(),
		Y:     num(2).InexactFloat64(),
		MapX:  num(3),
		MapY:  num(4),
		Lat:   num(5),
		Lon:   num(6),
		Red:   num(7).InexactFloat64(),
		Green: num(8).InexactFloat64(),
		Blue:  num(9).InexactFloat64(),
	}, nil
}
