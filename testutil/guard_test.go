package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestImportPredicates(t *testing.T) {
	cases := []struct {
		name      string
		predicate func(string) bool
		in        string
		want      bool
	}{
		{"internal", InternalImportForbidden, "famgraph/internal/core", true},
		{"internal public", InternalImportForbidden, "famgraph/pkg/domain", false},
		{"infra", InfraImportForbidden, "famgraph/internal/infra/blob/s3", true},
		{"infra facade", InfraImportForbidden, "famgraph/internal/blob", false},
		{"third party", ThirdPartyImportForbidden, "github.com/go-chi/chi/v5", true},
		{"module local", ThirdPartyImportForbidden, "famgraph/internal/core", true},
		{"stdlib", ThirdPartyImportForbidden, "encoding/json", false},
	}
	for _, c := range cases {
		if got := c.predicate(c.in); got != c.want {
			t.Fatalf("%s: predicate(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package tmp\nimport (\n\t\"fmt\"\n\t\"famgraph/internal/infra/blob/fs\"\n)\nvar _ = fmt.Sprint\nvar _ = fs.New\n"
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package tmp\nimport _ \"famgraph/internal/infra/blob/s3\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "blob/fs (in x.go)") {
		t.Fatalf("unexpected violations %v", viols)
	}

	var rec recordingFatal
	failIfDirectViolations(&rec, "backends behind facades", viols)
	if !strings.Contains(rec.msg, "backends behind facades") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

func TestTransitiveViolationsUseLoader(t *testing.T) {
	orig := loadDeps
	defer func() { loadDeps = orig }()
	loadDeps = func(string) ([]string, error) {
		return []string{"context", "famgraph/internal/core", "famgraph/pkg/domain"}, nil
	}
	viols, err := transitiveDependencyViolations("famgraph/pkg/domain", InternalImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "famgraph/internal/core" {
		t.Fatalf("unexpected violations %v", viols)
	}

	var rec recordingFatal
	failIfTransitiveViolations(&rec, "domain stays portable", viols)
	if !strings.Contains(rec.msg, "famgraph/internal/core") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
}
