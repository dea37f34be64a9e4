package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/fsutil"
)

// Catalog lists datasets by name and loads them on demand.
type Catalog interface {
	// Names returns every dataset name in catalog order.
	Names() []string
	Get(ctx context.Context, name string) (Dataset, error)
}

// DirCatalog serves every *.csv file below a directory. A dataset is named
// after its file stem; names are sorted. Loaded datasets are cached.
type DirCatalog struct {
	dir   string
	opts  Options
	names []string
	files map[string]string

	mu    sync.Mutex
	cache map[string]Dataset
}

// NewDirCatalog scans dir for CSV files.
func NewDirCatalog(ctx context.Context, dir string, opts Options) (*DirCatalog, error) {
	logger := ctxlog.FromContext(ctx)

	paths, err := fsutil.FindFilesByExtension(dir, ".csv")
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets in %s: %w", dir, err)
	}
	c := &DirCatalog{
		dir:   dir,
		opts:  opts,
		files: make(map[string]string, len(paths)),
		cache: make(map[string]Dataset),
	}
	for _, p := range paths {
		name := fsutil.Stem(p)
		if prev, dup := c.files[name]; dup {
			return nil, fmt.Errorf("dataset %s is defined twice: %s and %s", name, prev, p)
		}
		c.files[name] = p
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	logger.Debug("Dataset catalog loaded.", "dir", dir, "datasets", len(c.names))
	return c, nil
}

// Names implements Catalog.
func (c *DirCatalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Get implements Catalog.
func (c *DirCatalog) Get(ctx context.Context, name string) (Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.cache[name]; ok {
		return d, nil
	}
	path, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownDataset, name, c.dir)
	}
	d, err := ReadCSV(path, c.opts)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Dataset loaded.", "dataset", name, "samples", d.Len(), "features", len(d.Features()))
	c.cache[name] = d
	return d, nil
}

// ReadCSV loads a table from a CSV file whose first row is the header.
func ReadCSV(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformed, path)
	}
	return NewTable(fsutil.Stem(path), records[0], records[1:], opts)
}

// MemoryCatalog serves datasets held in memory, in the order given.
type MemoryCatalog struct {
	names []string
	sets  map[string]Dataset
}

// NewMemoryCatalog creates a catalog over sets.
func NewMemoryCatalog(sets ...Dataset) *MemoryCatalog {
	c := &MemoryCatalog{sets: make(map[string]Dataset, len(sets))}
	for _, d := range sets {
		c.names = append(c.names, d.Name())
		c.sets[d.Name()] = d
	}
	return c
}

// Names implements Catalog.
func (c *MemoryCatalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Get implements Catalog.
func (c *MemoryCatalog) Get(_ context.Context, name string) (Dataset, error) {
	d, ok := c.sets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return d, nil
}

var (
	_ Catalog = (*DirCatalog)(nil)
	_ Catalog = (*MemoryCatalog)(nil)
)
