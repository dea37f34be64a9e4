package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gridbench/internal/registry"
	"github.com/specialistvlad/gridbench/modules/binning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var weatherHeader = []string{"outlook", "temperature", "windy", "play"}

var weatherRecords = [][]string{
	{"sunny", "85", "false", "no"},
	{"sunny", "80", "true", "no"},
	{"overcast", "83", "false", "yes"},
	{"rainy", "70", "false", "yes"},
	{"rainy", "68", "false", "yes"},
	{"rainy", "65", "true", "no"},
	{"overcast", "64", "true", "yes"},
	{"sunny", "72", "false", "no"},
	{"sunny", "69", "false", "yes"},
}

func discretizing() Options {
	return Options{Discretize: true, Algo: "bin3u", Registry: registry.New(&binning.Module{})}
}

func TestNewTable(t *testing.T) {
	tbl, err := NewTable("weather", weatherHeader, weatherRecords, discretizing())
	require.NoError(t, err)

	assert.Equal(t, "weather", tbl.Name())
	assert.Equal(t, []string{"outlook", "temperature", "windy"}, tbl.Features())
	assert.Equal(t, "play", tbl.ClassName())
	assert.Equal(t, 9, tbl.Len())
	assert.Equal(t, []int{0, 0, 1, 1, 1, 0, 1, 0, 1}, tbl.Labels())

	X, y := tbl.Tensors()
	require.Len(t, X, 9)
	// outlook codes: overcast=0, rainy=1, sunny=2
	assert.Equal(t, []float64{2, 85, 0}, X[0])
	assert.Equal(t, tbl.Labels(), y)
}

func TestTrainTest_DiscretizesOnTrainOnly(t *testing.T) {
	tbl, err := NewTable("weather", weatherHeader, weatherRecords, discretizing())
	require.NoError(t, err)

	// Train temperatures 64..70 give bins of width 2; the test row at 85
	// lands in the top bin.
	train := []int{3, 4, 5, 6, 8}
	test := []int{0}
	split, err := tbl.TrainTest(train, test)
	require.NoError(t, err)

	require.Len(t, split.XTrain, 5)
	require.Len(t, split.XTest, 1)
	assert.Equal(t, []int{1, 1, 0, 1, 1}, split.YTrain)
	assert.Equal(t, []int{0}, split.YTest)
	assert.Equal(t, map[string]int{"outlook": 3, "temperature": 3, "windy": 2, "play": 2}, split.States)

	temps := make([]int, len(split.XTrain))
	for i, row := range split.XTrain {
		temps[i] = row[1]
	}
	// 70, 68, 65, 64, 69 against cuts 66 and 68.
	assert.Equal(t, []int{2, 1, 0, 0, 2}, temps)
	assert.Equal(t, 2, split.XTest[0][1])

	data := split.TrainRows([]int{0, 2})
	assert.Equal(t, [][]int{split.XTrain[0], split.XTrain[2]}, data.X)
	assert.Equal(t, []int{1, 0}, data.Y)
	assert.Equal(t, "play", data.ClassName)
	assert.Len(t, split.Train().X, 5)

	_, err = tbl.TrainTest([]int{0, 9}, nil)
	assert.Error(t, err)
}

func TestNewTable_WithoutDiscretization(t *testing.T) {
	records := [][]string{{"0", "2", "a"}, {"1", "0", "b"}, {"1", "1", "a"}}
	tbl, err := NewTable("ints", []string{"x", "y", "class"}, records, Options{})
	require.NoError(t, err)

	split, err := tbl.TrainTest([]int{0, 1}, []int{2})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2}, {1, 0}}, split.XTrain)
	assert.Equal(t, map[string]int{"x": 2, "y": 3, "class": 2}, split.States)

	_, err = NewTable("floats", []string{"x", "class"}, [][]string{{"0.5", "a"}}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestNewTable_Errors(t *testing.T) {
	_, err := NewTable("one", []string{"class"}, [][]string{{"a"}}, Options{})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = NewTable("empty", []string{"x", "class"}, nil, Options{})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = NewTable("ragged", []string{"x", "class"}, [][]string{{"1"}}, Options{})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = NewTable("noreg", weatherHeader, weatherRecords, Options{Discretize: true, Algo: "bin3u"})
	assert.Error(t, err)

	opts := discretizing()
	opts.Algo = "mdlp"
	_, err = NewTable("badalgo", weatherHeader, weatherRecords, opts)
	assert.True(t, errors.Is(err, registry.ErrUnknownDiscretizer))
}

func writeCSV(t *testing.T, path string, rows ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := ""
	for _, r := range rows {
		content += r + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirCatalog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "wine.csv"), "alcohol,class", "13.2,a", "12.1,b", "14.0,a")
	writeCSV(t, filepath.Join(dir, "uci", "balance.csv"), "# comment", "left,right,class", "1,2,L", "2,1,R")
	writeCSV(t, filepath.Join(dir, "notes.txt"), "ignored")

	c, err := NewDirCatalog(ctx, dir, discretizing())
	require.NoError(t, err)
	assert.Equal(t, []string{"balance", "wine"}, c.Names())

	d, err := c.Get(ctx, "balance")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"left", "right"}, d.Features())

	again, err := c.Get(ctx, "balance")
	require.NoError(t, err)
	assert.Same(t, d, again)

	_, err = c.Get(ctx, "iris")
	assert.True(t, errors.Is(err, ErrUnknownDataset))
}

func TestDirCatalog_Duplicates(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "a", "iris.csv"), "x,class", "1,a")
	writeCSV(t, filepath.Join(dir, "b", "iris.csv"), "x,class", "1,a")

	_, err := NewDirCatalog(context.Background(), dir, Options{})
	assert.Error(t, err)
}

func TestMemoryCatalog(t *testing.T) {
	tbl, err := NewTable("weather", weatherHeader, weatherRecords, discretizing())
	require.NoError(t, err)

	c := NewMemoryCatalog(tbl)
	assert.Equal(t, []string{"weather"}, c.Names())
	got, err := c.Get(context.Background(), "weather")
	require.NoError(t, err)
	assert.Equal(t, tbl, got)

	_, err = c.Get(context.Background(), "iris")
	assert.True(t, errors.Is(err, ErrUnknownDataset))
}
