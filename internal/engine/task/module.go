package task

import (
	"context"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/zerr"
)

// parseModule turns the source of a module into a syntax tree.
// Its id is the module location, such as /foo/bar.
type parseModule struct {
	path string
}

func (b *parseModule) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	res, err := env.Filesystem.ResolveModule(env.Key.ID())
	if err != nil {
		return Configuration{}, err
	}
	b.path = res.Path
	return Configuration{HashInputs: []string{res.EntityTag}}, nil
}

func (b *parseModule) Run(_ context.Context, env *RunEnv) Poll {
	location := env.Key.ID()
	source, err := env.Filesystem.ReadFile(b.path)
	if err != nil {
		return Done(err)
	}
	ast, err := env.Toolchain.Parse(location, source)
	if err != nil {
		return Done(err)
	}
	if _, err := env.StoreArtifact(location, ast, moduleMetadata(domain.ContentTypeAST, location)); err != nil {
		return Done(err)
	}
	env.Logf("parsed %s", location)
	return Done(nil)
}

// symbolizeModule extracts the symbol table from the syntax tree of a module.
type symbolizeModule struct{}

func (b *symbolizeModule) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	return Configuration{Deps: []domain.TaskKey{domain.NewTaskKey(DomainParseModule, env.Key.ID(), nil)}}, nil
}

func (b *symbolizeModule) Run(_ context.Context, env *RunEnv) Poll {
	location := env.Key.ID()
	ast, err := env.DependencyContent(domain.NewTaskKey(DomainParseModule, location, nil), location, domain.ContentTypeAST)
	if err != nil {
		return Done(err)
	}
	symbols, err := env.Toolchain.Symbolize(ast)
	if err != nil {
		return Done(err)
	}
	if _, err := env.StoreArtifact(location, symbols, moduleMetadata(domain.ContentTypeSymbols, location)); err != nil {
		return Done(err)
	}
	return Done(nil)
}

type compilePhase int

const (
	phaseAnalyzeImports compilePhase = iota
	phaseCompileModule
	phaseComplete
)

// compileModule produces the object code of one module. The objects of its
// imports are linked into its namespace, so the artifacts of a compiled module
// cover its whole import closure.
type compileModule struct {
	imports []string
	phase   compilePhase
}

func (b *compileModule) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	location := env.Key.ID()
	res, err := env.Filesystem.ResolveModule(location)
	if err != nil {
		return Configuration{}, err
	}
	source, err := env.Filesystem.ReadFile(res.Path)
	if err != nil {
		return Configuration{}, err
	}
	imports, err := env.Toolchain.ScanImports(source)
	if err != nil {
		return Configuration{}, domain.Condition(domain.ErrInvalidConfiguration, err)
	}
	b.imports = imports

	deps := []domain.TaskKey{
		domain.NewTaskKey(DomainParseModule, location, nil),
		domain.NewTaskKey(DomainSymbolizeModule, location, nil),
	}
	deps = append(deps, moduleKeys(DomainCompileModule, imports)...)
	return Configuration{HashInputs: []string{res.EntityTag}, Deps: deps}, nil
}

func (b *compileModule) Run(_ context.Context, env *RunEnv) Poll {
	switch b.phase {
	case phaseAnalyzeImports:
		return b.analyzeImports(env)
	case phaseCompileModule:
		return b.compile(env)
	default:
		return Done(nil)
	}
}

func (b *compileModule) analyzeImports(env *RunEnv) Poll {
	for _, imp := range b.imports {
		dep := domain.NewTaskKey(DomainCompileModule, imp, nil)
		if _, err := env.DependencyContent(dep, imp, domain.ContentTypeObject); err != nil {
			return Done(domain.Condition(domain.ErrMissingInput,
				zerr.With(domain.Detail(domain.ErrUnresolvedImport, "import", imp), "cause", err.Error())))
		}
	}
	b.phase = phaseCompileModule
	return Pending()
}

func (b *compileModule) compile(env *RunEnv) Poll {
	location := env.Key.ID()
	ast, err := env.DependencyContent(domain.NewTaskKey(DomainParseModule, location, nil), location, domain.ContentTypeAST)
	if err != nil {
		return Done(err)
	}
	symbols, err := env.DependencyContent(
		domain.NewTaskKey(DomainSymbolizeModule, location, nil), location, domain.ContentTypeSymbols)
	if err != nil {
		return Done(err)
	}

	imported := make(map[string][]byte, len(b.imports))
	for _, imp := range b.imports {
		obj, err := env.DependencyContent(domain.NewTaskKey(DomainCompileModule, imp, nil), imp, domain.ContentTypeObject)
		if err != nil {
			return Done(err)
		}
		imported[imp] = obj
	}

	object, err := env.Toolchain.Compile(ast, symbols, imported)
	if err != nil {
		return Done(err)
	}
	if _, err := env.StoreArtifact(location, object, moduleMetadata(domain.ContentTypeObject, location)); err != nil {
		return Done(err)
	}
	if err := env.LinkDependencies(moduleKeys(DomainCompileModule, b.imports)); err != nil {
		return Done(err)
	}

	b.phase = phaseComplete
	env.Logf("compiled %s (%d imports)", location, len(b.imports))
	return Done(nil)
}

type analyzePhase int

const (
	phaseSymbolizeImports analyzePhase = iota
	phaseAnalyzeModule
	phaseAnalyzed
)

// analyzeModule produces the outline of one module. It asks for the symbol
// tables of its imports on its first run and analyzes once they are built.
type analyzeModule struct {
	imports []string
	phase   analyzePhase
}

func (b *analyzeModule) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	location := env.Key.ID()
	res, err := env.Filesystem.ResolveModule(location)
	if err != nil {
		return Configuration{}, err
	}
	source, err := env.Filesystem.ReadFile(res.Path)
	if err != nil {
		return Configuration{}, err
	}
	imports, err := env.Toolchain.ScanImports(source)
	if err != nil {
		return Configuration{}, domain.Condition(domain.ErrInvalidConfiguration, err)
	}
	b.imports = imports

	return Configuration{
		HashInputs: []string{res.EntityTag},
		Deps: []domain.TaskKey{
			domain.NewTaskKey(DomainParseModule, location, nil),
			domain.NewTaskKey(DomainSymbolizeModule, location, nil),
		},
	}, nil
}

func (b *analyzeModule) Run(_ context.Context, env *RunEnv) Poll {
	switch b.phase {
	case phaseSymbolizeImports:
		b.phase = phaseAnalyzeModule
		return Pending(moduleKeys(DomainSymbolizeModule, b.imports)...)
	case phaseAnalyzeModule:
		return b.analyze(env)
	default:
		return Done(nil)
	}
}

func (b *analyzeModule) analyze(env *RunEnv) Poll {
	location := env.Key.ID()
	ast, err := env.DependencyContent(domain.NewTaskKey(DomainParseModule, location, nil), location, domain.ContentTypeAST)
	if err != nil {
		return Done(err)
	}

	imported := make(map[string][]byte, len(b.imports))
	for _, imp := range b.imports {
		symbols, err := env.DependencyContent(
			domain.NewTaskKey(DomainSymbolizeModule, imp, nil), imp, domain.ContentTypeSymbols)
		if err != nil {
			return Done(domain.Condition(domain.ErrMissingInput,
				zerr.With(domain.Detail(domain.ErrUnresolvedImport, "import", imp), "cause", err.Error())))
		}
		imported[imp] = symbols
	}

	outline, err := env.Toolchain.Analyze(ast, imported)
	if err != nil {
		return Done(err)
	}
	if _, err := env.StoreArtifact(location, outline, moduleMetadata(domain.ContentTypeOutline, location)); err != nil {
		return Done(err)
	}

	b.phase = phaseAnalyzed
	env.Logf("analyzed %s (%d imports)", location, len(b.imports))
	return Done(nil)
}
