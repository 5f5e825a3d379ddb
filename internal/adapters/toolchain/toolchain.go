// Package toolchain implements the bundled line-oriented Lyric front and back end.
//
// A module source is a sequence of lines:
//
//	# comment
//	import "/other/module"
//	def name
//	any other non-empty line is a statement
package toolchain

import (
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/lyric/internal/adapters/fs"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Toolchain = (*Toolchain)(nil)

// ObjectFormat identifies the object encoding produced by Compile.
const ObjectFormat = "lyric-object/1"

var (
	importPattern = regexp.MustCompile(`^import\s+"(/[^"\s]*)"$`)
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// AST is the parsed form of a module.
type AST struct {
	Location   string      `json:"location"`
	Imports    []string    `json:"imports,omitempty"`
	Defs       []Def       `json:"defs,omitempty"`
	Statements []Statement `json:"statements,omitempty"`
}

// Def is a symbol definition.
type Def struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Statement is an opaque source line.
type Statement struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Symbols is the symbol table of a module.
type Symbols struct {
	Module  string   `json:"module"`
	Symbols []string `json:"symbols"`
}

// Object is the compiled form of a module.
type Object struct {
	Format   string            `json:"format"`
	Module   string            `json:"module"`
	Exports  []string          `json:"exports"`
	Imports  map[string]string `json:"imports,omitempty"`
	Code     []string          `json:"code,omitempty"`
	Checksum string            `json:"checksum"`
}

// Outline is the analyzed form of a module: its definitions and the symbols
// its statements reference.
type Outline struct {
	Module      string      `json:"module"`
	Definitions []Def       `json:"definitions"`
	Imports     []Import    `json:"imports,omitempty"`
	References  []Reference `json:"references,omitempty"`
}

// Import is the symbol table of one imported module.
type Import struct {
	Module  string   `json:"module"`
	Symbols []string `json:"symbols"`
}

// Reference is a statement word that names a known symbol.
type Reference struct {
	Line   int    `json:"line"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// Toolchain implements ports.Toolchain.
type Toolchain struct{}

// New creates a new Toolchain.
func New() *Toolchain {
	return &Toolchain{}
}

// ScanImports returns the imported module locations in order of appearance.
func (t *Toolchain) ScanImports(source []byte) ([]string, error) {
	ast, err := parse("", source)
	if err != nil {
		return nil, err
	}
	return ast.Imports, nil
}

// Parse parses a module source into its encoded AST.
func (t *Toolchain) Parse(location string, source []byte) ([]byte, error) {
	ast, err := parse(location, source)
	if err != nil {
		return nil, err
	}
	return marshal(ast)
}

// Symbolize extracts the sorted symbol table of a parsed module.
func (t *Toolchain) Symbolize(encodedAST []byte) ([]byte, error) {
	var ast AST
	if err := json.Unmarshal(encodedAST, &ast); err != nil {
		return nil, zerr.Wrap(err, "failed to decode syntax tree")
	}

	names := make([]string, 0, len(ast.Defs))
	for _, d := range ast.Defs {
		names = append(names, d.Name)
	}
	slices.Sort(names)

	return marshal(Symbols{Module: ast.Location, Symbols: names})
}

// Compile produces the object of a module. Every import of the module must be
// present in imports.
func (t *Toolchain) Compile(encodedAST, encodedSymbols []byte, imports map[string][]byte) ([]byte, error) {
	var ast AST
	if err := json.Unmarshal(encodedAST, &ast); err != nil {
		return nil, zerr.Wrap(err, "failed to decode syntax tree")
	}
	var symbols Symbols
	if err := json.Unmarshal(encodedSymbols, &symbols); err != nil {
		return nil, zerr.Wrap(err, "failed to decode symbol table")
	}

	obj := Object{
		Format:  ObjectFormat,
		Module:  ast.Location,
		Exports: symbols.Symbols,
	}
	if obj.Exports == nil {
		obj.Exports = []string{}
	}

	for _, imp := range ast.Imports {
		code, ok := imports[imp]
		if !ok {
			return nil, zerr.With(domain.Detail(domain.ErrUnresolvedImport, "import", imp), "module", ast.Location)
		}
		if obj.Imports == nil {
			obj.Imports = make(map[string]string, len(ast.Imports))
		}
		obj.Imports[imp] = fs.FormatHash(xxhash.Sum64(code))
	}

	for _, st := range ast.Statements {
		obj.Code = append(obj.Code, st.Text)
	}

	digest := xxhash.New()
	_, _ = digest.WriteString(obj.Module)
	for _, e := range obj.Exports {
		_, _ = digest.WriteString("\x00" + e)
	}
	for _, imp := range ast.Imports {
		_, _ = digest.WriteString("\x00" + imp + "=" + obj.Imports[imp])
	}
	for _, c := range obj.Code {
		_, _ = digest.WriteString("\x00" + c)
	}
	obj.Checksum = fs.FormatHash(digest.Sum64())

	return marshal(obj)
}

// Analyze resolves the statement words of a module against its own definitions
// and the symbol tables of its imports. Every import of the module must be
// present in imports.
func (t *Toolchain) Analyze(encodedAST []byte, imports map[string][]byte) ([]byte, error) {
	var ast AST
	if err := json.Unmarshal(encodedAST, &ast); err != nil {
		return nil, zerr.Wrap(err, "failed to decode syntax tree")
	}

	outline := Outline{Module: ast.Location, Definitions: ast.Defs}
	if outline.Definitions == nil {
		outline.Definitions = []Def{}
	}

	owner := make(map[string]string)
	for _, d := range ast.Defs {
		owner[d.Name] = ast.Location
	}
	for _, imp := range ast.Imports {
		encoded, ok := imports[imp]
		if !ok {
			return nil, zerr.With(domain.Detail(domain.ErrUnresolvedImport, "import", imp), "module", ast.Location)
		}
		var symbols Symbols
		if err := json.Unmarshal(encoded, &symbols); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to decode symbol table"), "import", imp)
		}
		outline.Imports = append(outline.Imports, Import{Module: imp, Symbols: symbols.Symbols})
		for _, name := range symbols.Symbols {
			if _, taken := owner[name]; !taken {
				owner[name] = imp
			}
		}
	}

	for _, st := range ast.Statements {
		for _, word := range strings.Fields(st.Text) {
			if module, ok := owner[word]; ok {
				outline.References = append(outline.References, Reference{Line: st.Line, Name: word, Module: module})
			}
		}
	}

	return marshal(outline)
}

func parse(location string, source []byte) (*AST, error) {
	ast := &AST{Location: location}
	seenDefs := make(map[string]int)
	seenImports := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(source))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case line == "import" || strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "import\t"):
			m := importPattern.FindStringSubmatch(line)
			if m == nil {
				return nil, syntaxError(location, lineNo, `expected import "/path"`)
			}
			if !seenImports[m[1]] {
				seenImports[m[1]] = true
				ast.Imports = append(ast.Imports, m[1])
			}

		case line == "def" || strings.HasPrefix(line, "def ") || strings.HasPrefix(line, "def\t"):
			name := strings.TrimSpace(strings.TrimPrefix(line, "def"))
			if !identPattern.MatchString(name) {
				return nil, syntaxError(location, lineNo, "expected identifier after def")
			}
			if prev, dup := seenDefs[name]; dup {
				return nil, zerr.With(syntaxError(location, lineNo, "duplicate definition of "+name), "previous_line", prev)
			}
			seenDefs[name] = lineNo
			ast.Defs = append(ast.Defs, Def{Name: name, Line: lineNo})

		default:
			ast.Statements = append(ast.Statements, Statement{Line: lineNo, Text: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to read module source")
	}

	return ast, nil
}

func syntaxError(location string, line int, msg string) error {
	err := zerr.With(domain.Detail(domain.ErrSyntax, "line", line), "reason", msg)
	if location != "" {
		err = zerr.With(err, "module", location)
	}
	return err
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode toolchain output")
	}
	return data, nil
}
