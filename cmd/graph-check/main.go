// Command graph-check evaluates the graph invariants over a committed store
// and exits non-zero when any blocking violation is found.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"famgraph/internal/config"
	"famgraph/internal/core"
	"famgraph/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

type report struct {
	Members    int                `json:"members"`
	Blocking   int                `json:"blocking"`
	Warnings   int                `json:"warnings"`
	Violations []domain.Violation `json:"violations"`
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("graph-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", ".env", "optional dotenv file")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.Load(*envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "graph-check: %v\n", err)
		return 2
	}
	rep, err := run(context.Background(), cfg.StoreConfig())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "graph-check: %v\n", err)
		return 2
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
	} else {
		printReport(stdout, rep)
	}
	if rep.Blocking > 0 {
		return 1
	}
	return 0
}

func run(ctx context.Context, storage core.StorageConfig) (report, error) {
	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(storage, engine)
	if err != nil {
		return report{}, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = core.CloseStore(store) }()

	svc := core.NewService(store, core.WithRulesEngine(engine))
	res, err := svc.CheckGraph(ctx)
	if err != nil {
		return report{}, err
	}
	rep := report{Members: len(svc.ListMembers()), Violations: res.Violations}
	if rep.Violations == nil {
		rep.Violations = []domain.Violation{}
	}
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			rep.Blocking++
		} else {
			rep.Warnings++
		}
	}
	return rep, nil
}

func printReport(w io.Writer, rep report) {
	for _, v := range rep.Violations {
		_, _ = fmt.Fprintf(w, "%-5s %-22s %s: %s\n", v.Severity, v.Rule, v.EntityID, v.Message)
	}
	_, _ = fmt.Fprintf(w, "checked %d members: %d blocking, %d warnings\n", rep.Members, rep.Blocking, rep.Warnings)
}
