package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gridbench/internal/registry"
	"github.com/specialistvlad/gridbench/internal/testutil"
	"github.com/specialistvlad/gridbench/modules/binning"
)

// SetupAppTest creates a new app instance with the fake model and the
// discretizers registered. Logs are captured and printed on request.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *bytes.Buffer, *testutil.SafeBuffer) {
	t.Helper()

	if len(modules) == 0 {
		modules = []registry.Module{
			&testutil.SimpleModule{Name: testutil.FakeModelName, Factory: func() registry.Classifier { return &testutil.FakeModel{} }},
			&binning.Module{},
		}
	}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"

	out := &bytes.Buffer{}
	logs := &testutil.SafeBuffer{}
	testApp := NewApp(out, logs, cfg, modules...)

	t.Cleanup(func() {
		if os.Getenv("GRIDBENCH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return testApp, out, logs
}

// workspace lays out a platform file, two iris datasets and a grid input for
// the fake model under a temporary directory. It returns the platform file
// and the grid directory.
func workspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	csv := testutil.CSV(testutil.IrisHeader, testutil.IrisRecords())
	platform := fmt.Sprintf(`
platform        = "test"
source_data     = %q
grid_dir        = %q
n_folds         = 3
nested          = 2
seeds           = [7]
discretize_algo = "bin3u"

experiment {
  hyperparameters = { q = 0.25 }
}
`, filepath.Join(dir, "datasets"), filepath.Join(dir, "grid"))

	testutil.WriteFiles(t, dir, map[string]string{
		"gridbench.hcl":             platform,
		"datasets/iris.csv":         csv,
		"datasets/flowers.csv":      csv,
		"grid/grid_fake_input.json": `{"all": [{"q": [0.2, 0.7]}]}`,
	})
	return filepath.Join(dir, "gridbench.hcl"), filepath.Join(dir, "grid")
}
