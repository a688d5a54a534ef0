// Package gen implements `opal gen`: discover a router export in a package,
// run it, and write the OpenAPI document pair to a directory.
package gen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opalrpc/opal/internal/discover"
	"github.com/opalrpc/opal/internal/runner"
)

type Cmd struct {
	Out     string `arg:"" help:"Output directory for openapi.json and openapi.yaml."`
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

	outDir, err := filepath.Abs(c.Out)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	output, err := runner.Exec(runner.Options{
		Export: *export,
		OutDir: outDir,
		PkgDir: result.Dir,
	})
	if err != nil {
		if len(output) > 0 {
			fmt.Fprint(os.Stderr, string(output))
		}
		return err
	}

	// Surface anything the export printed (log output, warnings)
	if len(output) > 0 {
		fmt.Print(string(output))
	}

	fmt.Printf("✓ Wrote %s\n", filepath.Join(outDir, "openapi.json"))
	fmt.Printf("✓ Wrote %s\n", filepath.Join(outDir, "openapi.yaml"))
	return nil
}
