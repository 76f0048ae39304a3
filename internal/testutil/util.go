// Package testutil holds golden-file helpers shared by package tests.
//
// Golden files live in the calling package's testdata/ directory. Run the
// tests with -update to write or rewrite them; a missing golden file fails
// the test.
package testutil

import (
	"bytes"
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// Update rewrites golden files instead of comparing against them.
var Update = flag.Bool(
	"update",
	false,
	"update golden files",
)

func goldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

func writeGolden(t *testing.T, name string, b []byte) {
	t.Helper()
	path := goldenPath(name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create testdata dir: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("failed to write golden file: %v", err)
	}
}

// CompareBytes checks actual against testdata/<name>.golden.
func CompareBytes(t *testing.T, name string, actual []byte) {
	t.Helper()

	if *Update {
		writeGolden(t, name, actual)
		t.Logf("wrote golden file %s", goldenPath(name))
		return
	}

	expected, err := os.ReadFile(goldenPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing golden file %s, run with -update to create it", goldenPath(name))
	}
	if err != nil {
		t.Fatalf("failed to read golden file: %v", err)
	}

	if !bytes.Equal(expected, actual) {
		t.Fatalf("golden mismatch for %s\nexpected:\n%s\nactual:\n%s",
			name, string(expected), string(actual))
	}
}
