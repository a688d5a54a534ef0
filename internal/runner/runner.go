// Package runner executes spec generation by building and running a
// modified version of the target package.
//
// It uses Go's -overlay flag to replace the package's main() with a runner
// that calls the export function and writes (or checks) the document.
package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/opalrpc/opal/internal/discover"
)

// Options configures the runner.
type Options struct {
	// Export is the function the generated main calls.
	Export discover.Export

	// OutDir receives openapi.json and openapi.yaml. Ignored in check mode.
	OutDir string

	// CheckMode validates the router and reports operation counts instead
	// of writing files.
	CheckMode bool

	// PkgDir is the directory containing the package.
	PkgDir string
}

// Exec builds and runs the generated main.
//
// It creates an overlay that:
//  1. Replaces files containing func main() with versions that have main() removed
//  2. Adds a runner file with our own main()
//
// The overlay approach lets us work with package main and unexported functions.
func Exec(opts Options) (output []byte, err error) {
	tmpDir, err := os.MkdirTemp("", "opal-gen-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// Find and process files with main()
	overlay := make(map[string]string)

	files, err := filepath.Glob(filepath.Join(opts.PkgDir, "*.go"))
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") {
			continue
		}

		hasMain, modified, err := removeMain(file)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", file, err)
		}

		if hasMain {
			tmpFile := filepath.Join(tmpDir, filepath.Base(file))
			if err := os.WriteFile(tmpFile, modified, 0644); err != nil {
				return nil, fmt.Errorf("write modified %s: %w", file, err)
			}
			overlay[file] = tmpFile
		}
	}

	runnerSrc, err := generateRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("generate runner: %w", err)
	}

	runnerFile := filepath.Join(tmpDir, "opal_runner_main_.go")
	if err := os.WriteFile(runnerFile, runnerSrc, 0644); err != nil {
		return nil, fmt.Errorf("write runner: %w", err)
	}

	// Map the runner to a "new" file in the package
	overlay[filepath.Join(opts.PkgDir, "opal_runner_main_.go")] = runnerFile

	overlayData := struct {
		Replace map[string]string `json:"Replace"`
	}{Replace: overlay}

	overlayJSON, err := json.Marshal(overlayData)
	if err != nil {
		return nil, fmt.Errorf("marshal overlay: %w", err)
	}

	overlayFile := filepath.Join(tmpDir, "overlay.json")
	if err := os.WriteFile(overlayFile, overlayJSON, 0644); err != nil {
		return nil, fmt.Errorf("write overlay: %w", err)
	}

	// Build with overlay. -mod=mod allows updating go.mod/go.sum if needed.
	binaryPath := filepath.Join(tmpDir, "runner")
	buildCmd := exec.Command("go", "build", "-mod=mod", "-overlay", overlayFile, "-o", binaryPath, ".")
	buildCmd.Dir = opts.PkgDir
	buildCmd.Env = append(os.Environ(), "GOWORK=off")
	if buildOut, err := buildCmd.CombinedOutput(); err != nil {
		return buildOut, fmt.Errorf("build: %w\n%s", err, buildOut)
	}

	runCmd := exec.Command(binaryPath)
	runCmd.Dir = opts.PkgDir
	output, err = runCmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("run: %w\n%s", err, output)
	}

	return output, nil
}

// removeMain parses a Go file and returns a version with func main() removed.
// Returns (hasMain, modifiedSource, error).
func removeMain(filename string) (bool, []byte, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return false, nil, err
	}

	hasMain := false
	var newDecls []ast.Decl
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if ok && fn.Name.Name == "main" && fn.Recv == nil {
			hasMain = true
			continue // skip main()
		}
		newDecls = append(newDecls, decl)
	}

	if !hasMain {
		return false, nil, nil
	}

	f.Decls = newDecls

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return false, nil, err
	}

	return true, buf.Bytes(), nil
}

// generateRunner creates the runner main() source.
func generateRunner(opts Options) ([]byte, error) {
	tmplStr := genRunnerTemplate
	if opts.CheckMode {
		tmplStr = checkRunnerTemplate
	}

	tmpl, err := template.New("runner").Parse(tmplStr)
	if err != nil {
		return nil, err
	}

	data := struct {
		ExportFunc string
		OutDir     string
	}{
		ExportFunc: opts.Export.Name,
		OutDir:     opts.OutDir,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

const genRunnerTemplate = `package main

import (
	"fmt"
	"os"
)

func main() {
	r := {{.ExportFunc}}()
	if err := r.ExportSpec({{printf "%q" .OutDir}}); err != nil {
		fmt.Fprintf(os.Stderr, "opal gen: %v\n", err)
		os.Exit(1)
	}
}
`

const checkRunnerTemplate = `package main

import (
	"fmt"
	"os"
)

func main() {
	r := {{.ExportFunc}}()
	if err := r.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "opal check: %v\n", err)
		os.Exit(1)
	}
	var queries, mutations int
	for _, def := range r.Operations() {
		switch def.Kind {
		case "query":
			queries++
		case "mutation":
			mutations++
		}
	}
	fmt.Printf("%d %d %d\n", queries+mutations, queries, mutations)
}
`
