package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pixelCSV = `Class,Red,Green,Blue
Vegetation,64,67,50
Soil,64,67,50
Rooftop,64,66,49
Blue Tarp,75,82,53
Blue Tarp,74,82,54
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderReadsLocalFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "pixels.csv", pixelCSV)
	ds, err := NewLoader(time.Second).Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, ds.Samples, 5)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, PixelSample{Red: 75, Green: 82, Blue: 53, Class: "Blue Tarp"}, ds.Samples[3])

	X := ds.Features()
	rows, cols := X.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 54.0, X.At(4, 2))
	assert.Equal(t, []string{"Vegetation", "Soil", "Rooftop", "Blue Tarp", "Blue Tarp"}, ds.Classes())
}

func TestLoaderFetchesURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Red,Green,Blue,Class\n1,2,3,Blue Tarp\n4,5,6,Soil\n")
	}))
	defer srv.Close()

	ds, err := NewLoader(time.Second).Load(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, ds.Samples, 2)
	assert.Equal(t, "Blue Tarp", ds.Samples[0].Class)
	assert.Equal(t, 6.0, ds.Samples[1].Blue)
}

func TestLoaderFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	tests := []struct {
		name   string
		source string
	}{
		{"empty source", ""},
		{"missing file", filepath.Join(dir, "nope.csv")},
		{"missing column", writeFile(t, dir, "nocol.csv", "Red,Green,Class\n1,2,Soil\n")},
		{"non numeric", writeFile(t, dir, "text.csv", "Red,Green,Blue,Class\n1,two,3,Soil\n")},
		{"nan channel", writeFile(t, dir, "nan.csv", "Red,Green,Blue,Class\n1,NaN,3,Soil\n")},
		{"header only", writeFile(t, dir, "header.csv", "Red,Green,Blue,Class\n")},
		{"empty file", writeFile(t, dir, "empty.csv", "")},
		{"ragged rows", writeFile(t, dir, "ragged.csv", "Red,Green,Blue,Class\n1,2,3\n")},
		{"http 404", notFound.URL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(time.Second).Load(context.Background(), tt.source)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDataUnavailable), err.Error())
		})
	}
}

func TestLoaderTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewLoader(50*time.Millisecond).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), time.Second)
}

func TestParsePixelCSVColumnOrderAndExtras(t *testing.T) {
	t.Parallel()

	in := "\"\",\"class\",\"BLUE\",\"green\",\"red\"\n1,Blue Tarp,200,10,20\n"
	samples, err := ParsePixelCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, PixelSample{Red: 20, Green: 10, Blue: 200, Class: "Blue Tarp"}, samples[0])
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	ds := &Dataset{Source: "mem", Samples: []PixelSample{
		{Red: 10, Green: 20, Blue: 200, Class: "Blue Tarp"},
		{Red: 20, Green: 30, Blue: 220, Class: "Blue Tarp"},
		{Red: 100, Green: 90, Blue: 80, Class: "Soil"},
		{Red: 300, Green: 90, Blue: 80, Class: "Rooftop"},
		{Red: 120, Green: 110, Blue: 60, Class: "Soil"},
		{Red: 110, Green: 100, Blue: 70, Class: "Soil"},
	}}

	s := Summarize(ds, "Blue Tarp")
	assert.Equal(t, 6, s.Samples)
	assert.Equal(t, 2, s.TargetCount)
	assert.Equal(t, 1, s.OutOfRange)
	assert.InDelta(t, 1.0/3, s.TargetShare(), 1e-12)

	require.Len(t, s.Classes, 3)
	assert.Equal(t, "Soil", s.Classes[0].Class)
	assert.Equal(t, 3, s.Classes[0].Count)
	assert.InDelta(t, 110, s.Classes[0].Mean[0], 1e-12)
	assert.Equal(t, "Blue Tarp", s.Classes[1].Class)
	assert.InDelta(t, 210, s.Classes[1].Mean[2], 1e-12)
	assert.Equal(t, "Rooftop", s.Classes[2].Class)
}

func TestValidator(t *testing.T) {
	t.Parallel()

	dv := NewDataValidator()
	ds := &Dataset{Samples: []PixelSample{{1, 2, 3, "a"}, {4, 5, 6, "b"}}}
	X := ds.Features()

	assert.NoError(t, dv.ValidateDataset(X, []int{0, 1}))
	assert.Error(t, dv.ValidateDataset(X, []int{0}))
	assert.NoError(t, dv.ValidateLabels([]int{0, 1}))
	assert.Error(t, dv.ValidateLabels([]int{1, 1}))
	assert.Error(t, dv.ValidateLabels(nil))
}
