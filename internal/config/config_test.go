package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGrid() Grid {
	return DefaultPlatform().Grid("tree")
}

func TestGrid_Validate(t *testing.T) {
	require.NoError(t, validGrid().Validate())

	cases := map[string]func(g *Grid){
		"missing model":         func(g *Grid) { g.Model = "" },
		"unknown score":         func(g *Grid) { g.Score = "f1" },
		"unknown smoothing":     func(g *Grid) { g.SmoothStrategy = "DIRICHLET" },
		"unknown discretizer":   func(g *Grid) { g.DiscretizeAlgo = "mdlp" },
		"only without continue": func(g *Grid) { g.Only = true },
		"one fold":              func(g *Grid) { g.NFolds = 1 },
		"one nested":            func(g *Grid) { g.Nested = 1 },
		"no seeds":              func(g *Grid) { g.Seeds = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := validGrid()
			mutate(&g)
			err := g.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	t.Run("only with continue", func(t *testing.T) {
		g := validGrid()
		g.ContinueFrom = "iris"
		g.Only = true
		assert.NoError(t, g.Validate())
		assert.True(t, g.Continuing())
	})

	t.Run("discretizer ignored when not discretizing", func(t *testing.T) {
		g := validGrid()
		g.Discretize = false
		g.DiscretizeAlgo = ""
		assert.NoError(t, g.Validate())
	})
}

func TestTopology_Validate(t *testing.T) {
	assert.NoError(t, Topology{Rank: 0, NProcs: 2}.Validate())
	assert.NoError(t, Topology{Rank: 3, NProcs: 4}.Validate())

	err := Topology{Rank: 0, NProcs: 1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 processes")

	assert.Error(t, Topology{Rank: 0, NProcs: 3, Manager: 1}.Validate())
	assert.Error(t, Topology{Rank: 3, NProcs: 3}.Validate())

	topo := Topology{Rank: 0, NProcs: 5}
	assert.True(t, topo.IsManager())
	assert.Equal(t, 4, topo.Workers())
}

func TestLoadPlatform_MissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPlatform(context.Background(), filepath.Join(t.TempDir(), DefaultPlatformFile))
	require.NoError(t, err)
	assert.Equal(t, DefaultPlatform(), p)
}

func TestLoadPlatform(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPlatformFile)
	content := `
platform        = "lab-cluster"
source_data     = "/data/uci"
n_folds         = 10
seeds           = [271, 314, 42]
stratified      = true
discretize_algo = "bin4q"
smooth_strat    = "CESTNIK"

experiment {
  hyperparameters = {
    max_depth = 3
  }
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadPlatform(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "lab-cluster", p.Platform)
	assert.Equal(t, "/data/uci", p.SourceData)
	assert.Equal(t, "grid", p.GridDir)
	assert.Equal(t, 10, p.NFolds)
	assert.Equal(t, 5, p.Nested)
	assert.Equal(t, []int{271, 314, 42}, p.Seeds)
	assert.True(t, p.Stratified)
	assert.True(t, p.Discretize)
	assert.Equal(t, "bin4q", p.DiscretizeAlgo)
	assert.Equal(t, "CESTNIK", p.SmoothStrategy)
	assert.Equal(t, `{"max_depth":3}`, p.ExperimentHyperparameters.String())

	g := p.Grid("tree")
	require.NoError(t, g.Validate())
	assert.Equal(t, NoContinue, g.ContinueFrom)
	assert.False(t, g.Continuing())
}

func TestLoadPlatform_Errors(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":        `platform = `,
		"unknown attr":  `colour = "blue"`,
		"bad smoothing": `smooth_strat = "DIRICHLET"`,
		"bad folds":     `n_folds = 1`,
		"scalar hyper":  "experiment {\n  hyperparameters = 3\n}\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultPlatformFile)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadPlatform(context.Background(), path)
			assert.Error(t, err)
		})
	}
}
