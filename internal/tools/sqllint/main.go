// Command sqllint checks that every inline SQL constant starts with a
// unique `--sql <uuid>` audit marker, so queries seen in database logs
// can be traced back to the constant that produced them.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordRe = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerRe     = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type problem struct {
	pos     token.Position
	name    string
	message string
}

type linter struct {
	fset     *token.FileSet
	seen     map[string]string // marker uuid -> const name that first claimed it
	problems []problem
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	l := &linter{fset: token.NewFileSet(), seen: map[string]string{}}
	for _, target := range targets {
		if err := l.lintTarget(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}

	if len(l.problems) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker violations")
	for _, p := range l.problems {
		fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", p.pos.Filename, p.pos.Line, p.message, p.name)
	}
	os.Exit(1)
}

func (l *linter) lintTarget(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return l.lintFile(target)
	}
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintFile(path)
	})
}

func (l *linter) lintFile(path string) error {
	file, err := parser.ParseFile(l.fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		name := specName(spec)
		for _, value := range spec.Values {
			lit, ok := value.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			raw, err := unquote(lit.Value)
			if err != nil || !sqlKeywordRe.MatchString(raw) {
				continue
			}
			l.checkMarker(l.fset.Position(lit.Pos()), name, raw)
		}
		return true
	})
	return nil
}

func (l *linter) checkMarker(pos token.Position, name, raw string) {
	m := markerRe.FindStringSubmatch(firstLine(raw))
	if m == nil {
		l.problems = append(l.problems, problem{pos: pos, name: name, message: "missing or invalid --sql <uuid> marker"})
		return
	}
	uuid := m[1]
	if prev, dup := l.seen[uuid]; dup {
		l.problems = append(l.problems, problem{pos: pos, name: name, message: "marker " + uuid + " already used by " + prev})
		return
	}
	l.seen[uuid] = name
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) > 1 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func specName(spec *ast.ValueSpec) string {
	names := make([]string, 0, len(spec.Names))
	for _, ident := range spec.Names {
		if ident != nil {
			names = append(names, ident.Name)
		}
	}
	return strings.Join(names, ",")
}
