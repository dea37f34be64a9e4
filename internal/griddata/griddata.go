// Package griddata reads hyperparameter grid files and expands them into
// concrete combinations.
//
// A grid file is a JSON object mapping a dataset name, or the wildcard "all",
// to one grid line or a list of grid lines. A grid line maps a hyperparameter
// name to its candidate values:
//
//	{
//	    "all":  [{"max_depth": [1, 2, 3]}],
//	    "iris": [{"max_depth": [1, 2]}, {"min_samples_split": [2, 4]}]
//	}
//
// Expansion is deterministic: combinations appear in line order and, within a
// line, in key-declaration order with the last key varying fastest.
package griddata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/gridbench/internal/hyper"
)

// AllDatasets is the wildcard key used when a dataset has no specific entry.
const AllDatasets = "all"

// ErrNoGrid is returned when neither the dataset nor the wildcard has an entry.
var ErrNoGrid = errors.New("no grid defined")

// Axis is one hyperparameter and its candidate values.
type Axis struct {
	Name   string
	Values []json.RawMessage
}

// Line is one grid line: an ordered list of axes to cross.
type Line []Axis

// MarshalJSON implements json.Marshaler and keeps declaration order.
func (l Line) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, axis := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(axis.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":[")
		for j, v := range axis.Values {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(v)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NumCombinations is the product of the candidate list sizes.
func (l Line) NumCombinations() int {
	n := 1
	for _, axis := range l {
		n *= len(axis.Values)
	}
	return n
}

// GridData holds a parsed grid file.
type GridData struct {
	keys  []string
	lines map[string][]Line
	raw   []byte
}

// Load reads and parses the grid file at path. A missing file yields an error
// naming the path and wrapping fs.ErrNotExist.
func Load(path string) (*GridData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open grid input file [%s]: %w", path, err)
	}
	g, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("grid input file [%s]: %w", path, err)
	}
	return g, nil
}

// Parse reads a grid document from r.
func Parse(r io.Reader) (*GridData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	g := &GridData{lines: make(map[string][]Line), raw: data}
	dec := json.NewDecoder(bytes.NewReader(data))
	err = hyper.ReadObject(dec, func(dataset string) error {
		lines, err := readLines(dec)
		if err != nil {
			return err
		}
		if _, dup := g.lines[dataset]; !dup {
			g.keys = append(g.keys, dataset)
		}
		g.lines[dataset] = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Raw returns the document the grid was parsed from.
func (g *GridData) Raw() json.RawMessage {
	return g.raw
}

// Datasets returns the keys of the grid file in declaration order.
func (g *GridData) Datasets() []string {
	return append([]string(nil), g.keys...)
}

// InputGrid returns the grid lines that apply to dataset.
func (g *GridData) InputGrid(dataset string) ([]Line, error) {
	key, err := g.decideDataset(dataset)
	if err != nil {
		return nil, err
	}
	return g.lines[key], nil
}

// NumCombinations sums, over each grid line for dataset, the product of its
// candidate list sizes.
func (g *GridData) NumCombinations(dataset string) (int, error) {
	lines, err := g.InputGrid(dataset)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, line := range lines {
		total += line.NumCombinations()
	}
	return total, nil
}

// Grid expands every grid line for dataset into its combinations.
func (g *GridData) Grid(dataset string) ([]hyper.Set, error) {
	lines, err := g.InputGrid(dataset)
	if err != nil {
		return nil, err
	}
	var out []hyper.Set
	for _, line := range lines {
		out = expand(line, hyper.Set{}, out)
	}
	return out, nil
}

func (g *GridData) decideDataset(dataset string) (string, error) {
	if _, ok := g.lines[dataset]; ok {
		return dataset, nil
	}
	if _, ok := g.lines[AllDatasets]; ok {
		return AllDatasets, nil
	}
	return "", fmt.Errorf("%w for dataset %s and no %q entry", ErrNoGrid, dataset, AllDatasets)
}

// expand appends one combination per leaf of the recursion over line.
func expand(line Line, current hyper.Set, out []hyper.Set) []hyper.Set {
	if len(line) == 0 {
		return append(out, current)
	}
	axis := line[0]
	for _, v := range axis.Values {
		out = expand(line[1:], current.With(axis.Name, v), out)
	}
	return out
}

// readLines reads either a single grid line object or an array of them.
func readLines(dec *json.Decoder) ([]Line, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		line, err := readLine(trimmed)
		if err != nil {
			return nil, err
		}
		return []Line{line}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("grid lines must be an object or a list of objects: %w", err)
	}
	lines := make([]Line, 0, len(items))
	for i, item := range items {
		line, err := readLine(item)
		if err != nil {
			return nil, fmt.Errorf("grid line %d: %w", i, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// readLine parses one grid line. A scalar candidate is a single-value list.
func readLine(data []byte) (Line, error) {
	var line Line
	dec := json.NewDecoder(bytes.NewReader(data))
	err := hyper.ReadObject(dec, func(name string) error {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var values []json.RawMessage
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &values); err != nil {
				return err
			}
		} else {
			values = []json.RawMessage{trimmed}
		}
		line = append(line, Axis{Name: name, Values: values})
		return nil
	})
	return line, err
}
