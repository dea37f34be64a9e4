package hyper

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_PreservesDeclarationOrder(t *testing.T) {
	s, err := Parse(`{"zeta": 1, "alpha": [1, 2], "mid": "x"}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, s.Names())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":[1,2],"mid":"x"}`, string(out))
}

func TestSet_NilMarshalsAsEmptyObject(t *testing.T) {
	var s Set
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestSet_Decode(t *testing.T) {
	s, err := Parse(`{"max_depth": 3, "criterion": "gini"}`)
	require.NoError(t, err)

	var depth int
	found, err := s.Decode("max_depth", &depth)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, depth)

	found, err = s.Decode("missing", &depth)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.Decode("criterion", &depth)
	assert.Error(t, err)
}

func TestSet_WithReplacesInPlace(t *testing.T) {
	s, err := Parse(`{"a": 1, "b": 2}`)
	require.NoError(t, err)

	s2 := s.With("a", json.RawMessage(`5`)).With("c", json.RawMessage(` true `))
	assert.Equal(t, `{"a":5,"b":2,"c":true}`, s2.String())
	assert.Equal(t, `{"a":1,"b":2}`, s.String(), "original set must stay untouched")
}

func TestSet_Check(t *testing.T) {
	s, err := Parse(`{"max_depth": 3, "bogus": 1}`)
	require.NoError(t, err)

	err = s.Check([]string{"max_depth", "min_samples_split"})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "bogus")

	assert.NoError(t, Set{}.Check(nil))
}

func TestParse_RejectsNonObjects(t *testing.T) {
	_, err := Parse(`[1,2]`)
	assert.Error(t, err)
	_, err = Parse(`{"a":`)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyper.json")
	doc := `{"iris": {"hyperparameters": {"max_depth": 2}, "score": 0.9}, "wine": {"hyperparameters": {}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := LoadFile(context.Background(), path, []string{"iris", "wine", "glass"})
	require.NoError(t, err)

	assert.Equal(t, `{"max_depth":2}`, got["iris"].String())
	assert.Equal(t, `{}`, got["wine"].String())
	assert.Equal(t, `{}`, got["glass"].String())
}

func TestLoadFile_AcceptsGridOutputDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid_output.json")
	doc := `{"model": "DecisionTree", "results": {"iris": {"hyperparameters": {"max_depth": 1}}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := LoadFile(context.Background(), path, []string{"iris"})
	require.NoError(t, err)
	assert.Equal(t, `{"max_depth":1}`, got["iris"].String())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUniform(t *testing.T) {
	s, err := Parse(`{"alpha": 1}`)
	require.NoError(t, err)
	got := Uniform([]string{"a", "b"}, s)
	assert.Len(t, got, 2)
	assert.Equal(t, s, got["b"])
}
