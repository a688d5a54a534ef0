// Package check implements `opal check`: discover a router export, run
// Validate() against it, and report what is registered.
package check

import (
	"fmt"
	"os"

	"github.com/opalrpc/opal/internal/discover"
	"github.com/opalrpc/opal/internal/runner"
)

type Cmd struct {
	Export  string `help:"Export function name (required if multiple exports exist)." short:"e"`
	Package string `help:"Package to scan (default: current directory)." short:"p" default:"."`
}

func (c *Cmd) Run() error {
	result, err := discover.Find(c.Package)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	export, err := discover.SelectExport(result.Exports, c.Export)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Found export: %s() *opal.Router\n", export.Name)

	output, err := runner.Exec(runner.Options{
		Export:    *export,
		CheckMode: true,
		PkgDir:    result.Dir,
	})
	if err != nil {
		if len(output) > 0 {
			fmt.Fprint(os.Stderr, string(output))
		}
		return err
	}

	// The check runner prints "total queries mutations" on success
	var ops, queries, mutations int
	if _, err := fmt.Sscanf(string(output), "%d %d %d", &ops, &queries, &mutations); err != nil {
		return fmt.Errorf("parse check output: %w\nraw output: %s", err, output)
	}

	fmt.Printf("✓ %d operations (%d queries, %d mutations)\n", ops, queries, mutations)
	fmt.Println("✓ Configuration valid")
	return nil
}
