package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePrefix = "lwdecomp/internal/"

// allowed lists, per internal package, the sibling packages it may import.
// cli composes the run; batch and report stay below driver.
var allowed = map[string]map[string]bool{
	"cli": {
		"audit":      true,
		"config":     true,
		"decompiler": true,
		"driver":     true,
		"filter":     true,
		"install":    true,
		"prompt":     true,
		"watch":      true,
	},
	"driver": {
		"audit":      true,
		"batch":      true,
		"decompiler": true,
		"filter":     true,
		"install":    true,
		"model":      true,
		"report":     true,
		"runstore":   true,
	},
	"batch": {
		"decompiler": true,
		"filter":     true,
		"model":      true,
		"runstore":   true,
	},
	"report": {
		"model":    true,
		"runstore": true,
	},
	"install": {
		"runstore": true,
	},
	"watch": {
		"filter": true,
	},
	"audit":      {},
	"config": {
		"filter":   true,
		"install":  true,
		"runstore": true,
	},
	"decompiler": {},
	"filter":     {},
	"model":      {},
	"prompt":     {},
	"runstore":   {},
}

func main() {
	var violations []string

	err := filepath.WalkDir("internal", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		srcPkg := sourcePackage(path)
		if srcPkg == "" {
			return nil
		}
		allowMap, ok := allowed[srcPkg]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: package %q has no boundary entry", path, srcPkg))
			return nil
		}

		file, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range file.Imports {
			tgtPkg, ok := targetPackage(strings.Trim(imp.Path.Value, `"`))
			if !ok || tgtPkg == srcPkg {
				continue
			}
			if !allowMap[tgtPkg] {
				violations = append(violations, fmt.Sprintf("%s: %s -> %s is forbidden", path, srcPkg, tgtPkg))
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "boundary walk failed: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("architecture boundary check: OK")
}

func sourcePackage(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 2 || parts[0] != "internal" {
		return ""
	}
	return parts[1]
}

func targetPackage(importPath string) (string, bool) {
	rest, ok := strings.CutPrefix(importPath, modulePrefix)
	if !ok || rest == "" {
		return "", false
	}
	pkg, _, _ := strings.Cut(rest, "/")
	return pkg, true
}
