package ports

// Toolchain is the Lyric language front and back end invoked by the module tasks.
// The scheduler never calls it directly.
//
//go:generate mockgen -source=toolchain.go -destination=mocks/mock_toolchain.go -package=mocks
type Toolchain interface {
	// ScanImports returns the module locations imported by source, in order of appearance.
	ScanImports(source []byte) ([]string, error)
	// Parse parses the source of the module at location into an encoded syntax tree.
	Parse(location string, source []byte) ([]byte, error)
	// Symbolize extracts the encoded symbol table of a parsed module.
	Symbolize(ast []byte) ([]byte, error)
	// Compile produces the object code of a module from its syntax tree and symbol table.
	// imports maps each imported module location to its object code.
	Compile(ast, symbols []byte, imports map[string][]byte) ([]byte, error)
	// Analyze produces the encoded outline of a module from its syntax tree.
	// imports maps each imported module location to its symbol table.
	Analyze(ast []byte, imports map[string][]byte) ([]byte, error)
}
