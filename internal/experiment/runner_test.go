package experiment

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/config"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/data"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/evaluation"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/models"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/preprocessing"
)

const holdOutHeader = `;;
;; ENVI Output of ROIs (4.8)
;; Number of ROIs: 1
;; File Dimension: 2000 x 1500
;;
;;    ID     X     Y          Map X           Map Y         Lat         Lon  B1  B2  B3
`

// writeTrainingCSV writes n pixels, every other one a Blue Tarp with
// Blue=255 and the rest Blue=0.
func writeTrainingCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Class,Red,Green,Blue\n")
	for i := 0; i < n; i++ {
		class, blue := "Vegetation", 0
		switch {
		case i%2 == 0:
			class, blue = "Blue Tarp", 255
		case i%4 == 1:
			class = "Soil"
		}
		fmt.Fprintf(&b, "%s,%d,%d,%d\n", class, i%17*10, (i*7)%23*10, blue)
	}
	path := filepath.Join(dir, "pixels.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeHoldOut(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	content := holdOutHeader + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func holdOutRows(n int, blue func(i int) int) []string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf("%d %d 3 741298.22 2039456.51 18.4452 -72.3362 %d %d %d",
			i+1, i+2, 10*i, 5*i+3, blue(i))
	}
	return rows
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	holdOutDir := filepath.Join(root, "holdout")
	require.NoError(t, os.Mkdir(holdOutDir, 0o755))

	cfg := config.Default()
	cfg.Data.Source = writeTrainingCSV(t, root, 100)
	cfg.HoldOut.Dir = holdOutDir
	cfg.Training.MaxWorkers = 4
	cfg.Report.OutputDir = filepath.Join(root, "report")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(12, func(i int) int { return i % 2 * 255 })...)
	writeHoldOut(t, cfg.HoldOut.Dir, "b.txt", "1 2 3 4 5 6 7 8 9")

	results, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, results.RunID)
	assert.Equal(t, 100, results.Summary.Samples)
	assert.Equal(t, 50, results.Summary.TargetCount)
	assert.Len(t, results.Summary.Classes, 3)
	assert.Equal(t, data.FeatureColumns, results.Scaler.Columns)

	require.Len(t, results.Training, 3)
	assert.Empty(t, results.Failed())
	for _, tr := range results.Training {
		assert.Equal(t, 1.0, tr.Metrics.Accuracy.V, tr.Name)
		assert.InDelta(t, 1.0, tr.Metrics.AUC.V, 1e-12, tr.Name)
	}

	holdOut := results.HoldOut
	require.NoError(t, holdOut.Err)
	assert.Equal(t, config.ScalingTraining, holdOut.Scaling)
	require.NotNil(t, holdOut.Parsed)
	assert.Len(t, holdOut.Parsed.Records, 12)
	require.Len(t, holdOut.Parsed.SkippedFiles, 1)
	assert.ErrorIs(t, holdOut.Parsed.SkippedFiles[0], data.ErrFileParse)

	require.Len(t, holdOut.Metrics, 3)
	for _, m := range holdOut.Metrics {
		assert.True(t, m.Placeholder)
		assert.Equal(t, HoldOutDataset, m.Dataset)
		assert.Equal(t, 12, m.N)
	}
	assert.Empty(t, holdOut.ModelErrs)
}

func TestRunConstantChannels(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	var b strings.Builder
	b.WriteString("Class,Red,Green,Blue\n")
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			b.WriteString("Blue Tarp,0,0,255\n")
		} else {
			b.WriteString("Soil,0,0,0\n")
		}
	}
	cfg.Data.Source = filepath.Join(t.TempDir(), "constant.csv")
	require.NoError(t, os.WriteFile(cfg.Data.Source, []byte(b.String()), 0o644))
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(6, func(i int) int { return i % 2 * 255 })...)

	results, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, results.ScalingErr, preprocessing.ErrDegenerateFeature)
	assert.Equal(t, []string{"Red", "Green"}, results.Scaler.Degenerate)

	require.Len(t, results.Training, 3)
	for _, tr := range results.Training {
		require.NoError(t, tr.Err, tr.Name)
		assert.Equal(t, 1.0, tr.Metrics.Accuracy.V, tr.Name)
		assert.InDelta(t, 1.0, tr.Metrics.AUC.V, 1e-12, tr.Name)
	}
	require.NoError(t, results.HoldOut.Err)
	assert.Len(t, results.HoldOut.Metrics, 3)
}

func TestRunRepeatedAlgorithm(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	weak := models.DefaultConfig(models.Logistic)
	weak.Ridge = 1e3
	cfg.Training.Models = []models.ModelConfig{models.DefaultConfig(models.Logistic), weak, models.DefaultConfig(models.LDA)}
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(6, func(i int) int { return i % 2 * 255 })...)

	runner := NewRunner(cfg, zaptest.NewLogger(t))
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, m := range results.HoldOut.Metrics {
		names = append(names, m.Model)
	}
	assert.Equal(t, []string{"Logistic Regression #1", "Logistic Regression #2", "LDA"}, names)
	assert.Len(t, results.HoldOut.Proba, 3)
	assert.NotEqual(t, results.HoldOut.Proba["Logistic Regression #1"], results.HoldOut.Proba["Logistic Regression #2"])

	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, runner.ExportPredictions(results, path))
	assert.Equal(t, []string{"Row", "Fold", "Label", "logistic_1_proba", "logistic_2_proba", "lda_proba"}, readCSV(t, path)[0])
}

func TestRunIndependentScaling(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.HoldOut.Scaling = config.ScalingIndependent
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(8, func(i int) int { return 40 * i })...)

	results, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, results.HoldOut.Err)
	assert.Equal(t, config.ScalingIndependent, results.HoldOut.Scaling)
	assert.Len(t, results.HoldOut.Metrics, 3)
}

func TestRunDegenerateHoldOutIsRecorded(t *testing.T) {
	t.Parallel()

	constantBlue := func(int) int { return 100 }

	cfg := testConfig(t)
	cfg.HoldOut.Scaling = config.ScalingIndependent
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(6, constantBlue)...)

	results, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, results.HoldOut.Err, preprocessing.ErrDegenerateFeature)
	assert.Empty(t, results.HoldOut.Metrics)
	assert.Len(t, results.Succeeded(), 3)

	// the same rows scale fine with the training parameters
	cfg = testConfig(t)
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(6, constantBlue)...)
	results, err = NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, results.HoldOut.Err)
	assert.Len(t, results.HoldOut.Metrics, 3)
}

func TestRunWithoutHoldOutRows(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	results, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, results.HoldOut.Err, ErrNoHoldOutRows)

	cfg = testConfig(t)
	cfg.HoldOut.Dir = filepath.Join(cfg.HoldOut.Dir, "missing")
	results, err = NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Error(t, results.HoldOut.Err)
	assert.Nil(t, results.HoldOut.Parsed)
}

func TestRunDataUnavailable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Data.Source = filepath.Join(t.TempDir(), "absent.csv")

	_, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	assert.ErrorIs(t, err, data.ErrDataUnavailable)
}

func TestRunIsolatesFailingModel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Training.Models = append(cfg.Training.Models, models.ModelConfig{Algorithm: "svm"})
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(5, func(i int) int { return i % 2 * 255 })...)

	results, err := NewRunner(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, results.Succeeded(), 3)
	require.Len(t, results.Failed(), 1)
	assert.Equal(t, "svm", results.Failed()[0].Name)
	assert.Len(t, results.HoldOut.Metrics, 3)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExports(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Training.Models = append(cfg.Training.Models, models.ModelConfig{Algorithm: "svm"})
	writeHoldOut(t, cfg.HoldOut.Dir, "a.txt", holdOutRows(4, func(i int) int { return i % 2 * 255 })...)

	runner := NewRunner(cfg, zaptest.NewLogger(t))
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "metrics.csv")
	require.NoError(t, runner.ExportResults(results, metricsPath))
	records := readCSV(t, metricsPath)
	// header, four cross-validation rows, three hold-out rows
	require.Len(t, records, 8)
	assert.Equal(t, metricsHeader, records[0])
	assert.Equal(t, evaluation.CVDataset, records[1][0])
	assert.Equal(t, "1.0000", records[1][5])
	assert.Equal(t, "svm", records[4][1])
	assert.Contains(t, records[4][len(metricsHeader)-1], "unknown algorithm")
	assert.Equal(t, HoldOutDataset, records[5][0])
	assert.Equal(t, "true", records[5][3])

	predictionsPath := filepath.Join(dir, "predictions.csv")
	require.NoError(t, runner.ExportPredictions(results, predictionsPath))
	records = readCSV(t, predictionsPath)
	require.Len(t, records, 101)
	assert.Equal(t, []string{"Row", "Fold", "Label", "logistic_proba", "lda_proba", "qda_proba"}, records[0])
	assert.Equal(t, "BlueTarp", records[1][2])
	assert.Equal(t, "NonBlueTarp", records[2][2])

	holdOutPath := filepath.Join(dir, "holdout_predictions.csv")
	require.NoError(t, runner.ExportHoldOutPredictions(results, holdOutPath))
	records = readCSV(t, holdOutPath)
	require.Len(t, records, 5)
	assert.Equal(t, append(append([]string(nil), holdOutPredictionsHeader...), "logistic_proba", "lda_proba", "qda_proba"), records[0])
	assert.Equal(t, []string{"1", "2", "3", "741298.22", "2039456.51", "18.4452", "-72.3362", "0", "3", "0"}, records[1][:10])
	assert.Contains(t, []string{"BlueTarp", "NonBlueTarp"}, records[1][10])
	assert.Equal(t, fmt.Sprintf("%.6f", results.HoldOut.Proba["LDA"][3]), records[4][12])
}

type closeFailure struct{ bytes.Buffer }

func (*closeFailure) Close() error { return errors.New("no space left on device") }

func TestExportsReturnCloseError(t *testing.T) {
	created := createFile
	t.Cleanup(func() { createFile = created })
	var out closeFailure
	createFile = func(string) (io.WriteCloser, error) { return &out, nil }

	runner := NewRunner(nil, nil)
	results := &Results{Config: config.Default()}
	exports := map[string]func(*Results, string) error{
		"results":              runner.ExportResults,
		"predictions":          runner.ExportPredictions,
		"hold-out predictions": runner.ExportHoldOutPredictions,
	}
	for name, export := range exports {
		t.Run(name, func(t *testing.T) {
			out.Reset()
			err := export(results, "unused.csv")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no space left on device")
			assert.NotZero(t, out.Len(), "header is written before close")
		})
	}
}

func TestScaleHoldOut(t *testing.T) {
	t.Parallel()

	params := preprocessing.ScalerParams{
		Columns: data.FeatureColumns,
		Mean:    []float64{10, 20, 30},
		Std:     []float64{2, 4, 5},
	}
	X := mat.NewDense(2, 3, []float64{
		10, 20, 30,
		12, 24, 35,
	})

	scaled, err := ScaleHoldOut(X, params, config.ScalingTraining)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, mat.Row(nil, 0, scaled))
	assert.Equal(t, []float64{1, 1, 1}, mat.Row(nil, 1, scaled))

	scaled, err = ScaleHoldOut(X, params, config.ScalingIndependent)
	require.NoError(t, err)
	assert.InDelta(t, -0.7071, scaled.At(0, 0), 1e-4)

	_, err = ScaleHoldOut(X, params, "per-file")
	assert.Error(t, err)
}
