// Package discover finds opal export functions by signature.
//
// It scans a Go package for functions with the signature
//
//	func() *opal.Router
//
// No directives or annotations needed — the signature is the marker.
package discover

import (
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"

	"golang.org/x/tools/go/packages"
)

// routerPkgPath is the import path whose Router type marks an export.
const routerPkgPath = "github.com/opalrpc/opal"

// Export represents a discovered export function.
type Export struct {
	Name string         // function name
	Pos  token.Position // source location
}

// Result contains discovered exports and package info.
type Result struct {
	Exports     []Export
	PackagePath string
	ModulePath  string
	ModuleDir   string // directory containing go.mod
	Dir         string // directory containing the package
}

// Find scans a Go package for export functions.
//
// The pattern follows go command semantics:
//   - "." for current directory
//   - Import path like "github.com/foo/bar"
//   - Absolute or relative directory path
func Find(pattern string) (*Result, error) {
	return FindDir(pattern, "")
}

// FindDir is like Find but allows specifying a working directory.
func FindDir(pattern, dir string) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles |
			packages.NeedTypes | packages.NeedModule,
		Dir: dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}

	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors[0])
	}

	result := &Result{
		PackagePath: pkg.PkgPath,
	}

	if pkg.Module != nil {
		result.ModulePath = pkg.Module.Path
		result.ModuleDir = pkg.Module.Dir
	}

	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	// Scan package scope for export functions
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		fn, ok := obj.(*types.Func)
		if !ok {
			continue
		}

		sig, ok := fn.Type().(*types.Signature)
		if !ok {
			continue
		}

		// Must be package-level (no receiver), no parameters, one result
		if sig.Recv() != nil || sig.Params().Len() != 0 || sig.Results().Len() != 1 {
			continue
		}

		if !isRouterPtr(sig.Results().At(0).Type()) {
			continue
		}

		result.Exports = append(result.Exports, Export{
			Name: fn.Name(),
			Pos:  pkg.Fset.Position(fn.Pos()),
		})
	}

	return result, nil
}

// isRouterPtr checks if a type is *opal.Router.
func isRouterPtr(t types.Type) bool {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return false
	}

	named, ok := ptr.Elem().(*types.Named)
	if !ok {
		return false
	}

	pkg := named.Obj().Pkg()
	if pkg == nil {
		return false
	}

	return pkg.Path() == routerPkgPath && named.Obj().Name() == "Router"
}

// SelectExport picks the export to use based on found exports and optional name.
//
// If name is empty:
//   - Returns the export if exactly one found
//   - Returns error if zero or multiple found
//
// If name is specified:
//   - Returns the export with that name
//   - Returns error if not found
func SelectExport(exports []Export, name string) (*Export, error) {
	if name != "" {
		for i := range exports {
			if exports[i].Name == name {
				return &exports[i], nil
			}
		}
		return nil, fmt.Errorf("export %q not found", name)
	}

	switch len(exports) {
	case 0:
		return nil, fmt.Errorf("no export found\n\nAdd a function that returns *opal.Router:\n\n    func SetupRouter() *opal.Router {\n        r := opal.New(opal.Config{})\n        // ...\n        return r\n    }")
	case 1:
		return &exports[0], nil
	default:
		msg := "multiple exports found:\n"
		for _, e := range exports {
			msg += fmt.Sprintf("  - %s() *opal.Router\n", e.Name)
		}
		msg += "\nSpecify which one: opal gen --export <name> <outdir>"
		return nil, fmt.Errorf("%s", msg)
	}
}
