package task

import (
	"go.trai.ch/lyric/internal/core/domain"
)

// Built-in task domains.
const (
	DomainParseModule       = "parse_module"
	DomainSymbolizeModule   = "symbolize_module"
	DomainCompileModule     = "compile_module"
	DomainAnalyzeModule     = "analyze_module"
	DomainCompile           = "compile"
	DomainArchive           = "archive"
	DomainFetchExternalFile = "fetch_external_file"
	DomainOrchestrate       = "orchestrate"
	DomainProvideModule     = "provide_module"
	DomainProvidePlugin     = "provide_plugin"
)

// BodyFactory creates the body of a new task.
type BodyFactory func(key domain.TaskKey) (Body, error)

// Builtins returns the body factories of the built-in task domains.
func Builtins() map[string]BodyFactory {
	return map[string]BodyFactory{
		DomainParseModule:       func(domain.TaskKey) (Body, error) { return &parseModule{}, nil },
		DomainSymbolizeModule:   func(domain.TaskKey) (Body, error) { return &symbolizeModule{}, nil },
		DomainCompileModule:     func(domain.TaskKey) (Body, error) { return &compileModule{}, nil },
		DomainAnalyzeModule:     func(domain.TaskKey) (Body, error) { return &analyzeModule{}, nil },
		DomainCompile:           func(domain.TaskKey) (Body, error) { return &compile{}, nil },
		DomainArchive:           func(domain.TaskKey) (Body, error) { return &archive{}, nil },
		DomainFetchExternalFile: func(domain.TaskKey) (Body, error) { return &fetchExternalFile{}, nil },
		DomainOrchestrate:       func(domain.TaskKey) (Body, error) { return &orchestrate{}, nil },
		DomainProvideModule: func(domain.TaskKey) (Body, error) {
			return &provideFile{contentType: domain.ContentTypeObject}, nil
		},
		DomainProvidePlugin: func(domain.TaskKey) (Body, error) {
			return &provideFile{contentType: domain.ContentTypePlugin}, nil
		},
	}
}

// moduleKeys returns one key of taskDomain per module location.
func moduleKeys(taskDomain string, modules []string) []domain.TaskKey {
	keys := make([]domain.TaskKey, 0, len(modules))
	for _, m := range modules {
		keys = append(keys, domain.NewTaskKey(taskDomain, m, nil))
	}
	return keys
}

func moduleMetadata(contentType, location string) domain.Metadata {
	return domain.Metadata{
		domain.MetaContentType:    contentType,
		domain.MetaModuleLocation: location,
	}
}
