package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleRosterCSV is a small roster with two months, a Friday and a Monday
// pattern, one blank cell and a lowercase mark.
const SampleRosterCSV = `Name,2024-01-05,2024-01-08,2024-02-02,2024-02-05
Alice,P,P,P,a
Bob,A,P,,P
Carol,P,A,A,A
`

// WriteFile writes content under dir and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
