package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/specialistvlad/gridbench/internal/dataset"
	"github.com/stretchr/testify/require"
)

var irisCenters = [][]float64{
	{5.0, 3.4, 1.5, 0.2},
	{5.9, 2.8, 4.3, 1.3},
	{6.6, 3.0, 5.6, 2.0},
}

var irisClasses = []string{"Iris-setosa", "Iris-versicolor", "Iris-virginica"}

// IrisHeader is the header of the Iris fixture.
var IrisHeader = []string{"sepallength", "sepalwidth", "petallength", "petalwidth", "class"}

// IrisRecords returns a deterministic iris-shaped table: 150 samples, four
// numeric features and three balanced classes interleaved row by row.
func IrisRecords() [][]string {
	records := make([][]string, 0, 150)
	for i := range 150 {
		c := i % 3
		row := make([]string, 0, 5)
		for j, center := range irisCenters[c] {
			offset := float64((i*7+j*3)%10-5) * 0.05
			row = append(row, strconv.FormatFloat(center+offset, 'f', 2, 64))
		}
		records = append(records, append(row, irisClasses[c]))
	}
	return records
}

// Iris builds the Iris fixture as a dataset table named "iris".
func Iris(t *testing.T, opts dataset.Options) *dataset.Table {
	t.Helper()
	table, err := dataset.NewTable("iris", IrisHeader, IrisRecords(), opts)
	require.NoError(t, err)
	return table
}

// CSV renders a header and records as CSV text.
func CSV(header []string, records [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, r := range records {
		b.WriteString(strings.Join(r, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteFiles writes files, keyed by path relative to dir, creating
// directories as needed.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}
