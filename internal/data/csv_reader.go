package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrDataUnavailable means the training table could not be fetched or parsed.
var ErrDataUnavailable = errors.New("data unavailable")

// FeatureColumns are the numeric channels, in feature-matrix column order.
var FeatureColumns = []string{"Red", "Green", "Blue"}

const classColumn = "Class"

type PixelSample struct {
	Red   float64
	Green float64
	Blue  float64
	Class string
}

type Dataset struct {
	Source  string
	Samples []PixelSample
}

// Features returns an n×3 matrix with columns Red, Green, Blue.
func (ds *Dataset) Features() *mat.Dense {
	X := mat.NewDense(len(ds.Samples), len(FeatureColumns), nil)
	for i, s := range ds.Samples {
		X.SetRow(i, []float64{s.Red, s.Green, s.Blue})
	}
	return X
}

func (ds *Dataset) Classes() []string {
	classes := make([]string, len(ds.Samples))
	for i, s := range ds.Samples {
		classes[i] = s.Class
	}
	return classes
}

type Loader struct {
	Timeout time.Duration
	Client  *http.Client
}

func NewLoader(timeout time.Duration) *Loader {
	return &Loader{
		Timeout: timeout,
		Client:  http.DefaultClient,
	}
}

// Load reads the pixel table from an http(s) URL or a local path. Any
// failure is wrapped in ErrDataUnavailable.
func (l *Loader) Load(ctx context.Context, source string) (*Dataset, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: no source configured", ErrDataUnavailable)
	}

	var samples []PixelSample
	var err error
	if isURL(source) {
		samples, err = l.fetch(ctx, source)
	} else {
		samples, err = readFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, source, err)
	}

	return &Dataset{Source: source, Samples: samples}, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]PixelSample, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch timed out after %v", l.Timeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return ParsePixelCSV(resp.Body)
}

func readFile(path string) ([]PixelSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParsePixelCSV(file)
}

// ParsePixelCSV parses a CSV whose header names the Red, Green, Blue and
// Class columns in any order. Extra columns are ignored.
func ParsePixelCSV(r io.Reader) ([]PixelSample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.Trim(strings.TrimSpace(name), `"`))] = i
	}
	var cols [4]int
	for k, name := range append(append([]string(nil), FeatureColumns...), classColumn) {
		i, ok := index[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("missing column %q in header %v", name, header)
		}
		cols[k] = i
	}

	var samples []PixelSample
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}

		var channels [3]float64
		for k := 0; k < 3; k++ {
			channels[k], err = parseFloat(record[cols[k]])
			if err != nil {
				return nil, fmt.Errorf("invalid %s value at line %d: %w", FeatureColumns[k], line, err)
			}
		}
		samples = append(samples, PixelSample{
			Red:   channels[0],
			Green: channels[1],
			Blue:  channels[2],
			Class: strings.TrimSpace(record[cols[3]]),
		})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("insufficient data in file")
	}
	return samples, nil
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
