package inspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bench/errors"
)

// ExternKind is the kind of an import or export.
type ExternKind string

const (
	ExternFunc   ExternKind = "func"
	ExternMemory ExternKind = "memory"
)

// Extern is one import or export of a module.
type Extern struct {
	Module  string // import namespace, empty for exports
	Name    string
	Kind    ExternKind
	Params  []string
	Results []string
	// MinPages is the initial size of a memory.
	MinPages uint32
}

// Signature renders a function type as "(i32, i64) -> (f32)".
func (e Extern) Signature() string {
	if e.Kind != ExternFunc {
		return string(e.Kind)
	}
	return "(" + strings.Join(e.Params, ", ") + ") -> (" + strings.Join(e.Results, ", ") + ")"
}

// Key is the "module#name" form used in missing-import errors.
func (e Extern) Key() string {
	return e.Module + "#" + e.Name
}

// Module is the static shape of a decoded module.
type Module struct {
	Name    string
	Size    int
	Imports []Extern
	Exports []Extern
}

// Resolver reports whether a host provides module#name.
type Resolver func(module, name string) bool

// Inspect decodes and validates bytecode without instantiating it.
func Inspect(ctx context.Context, bytecode []byte) (*Module, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2))
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, bytecode)
	if err != nil {
		return nil, errors.New(errors.PhaseInspect, errors.KindInvalidBytecode).
			Value(len(bytecode)).
			Detail("decode module").
			Cause(err).
			Build()
	}
	defer compiled.Close(ctx)

	m := &Module{Name: compiled.Name(), Size: len(bytecode)}

	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		m.Imports = append(m.Imports, funcExtern(mod, name, def))
	}
	for _, def := range compiled.ImportedMemories() {
		mod, name, _ := def.Import()
		m.Imports = append(m.Imports, Extern{Module: mod, Name: name, Kind: ExternMemory, MinPages: def.Min()})
	}
	for name, def := range compiled.ExportedFunctions() {
		m.Exports = append(m.Exports, funcExtern("", name, def))
	}
	for name, def := range compiled.ExportedMemories() {
		m.Exports = append(m.Exports, Extern{Name: name, Kind: ExternMemory, MinPages: def.Min()})
	}

	sort.Slice(m.Imports, func(i, j int) bool { return m.Imports[i].Key() < m.Imports[j].Key() })
	sort.Slice(m.Exports, func(i, j int) bool { return m.Exports[i].Name < m.Exports[j].Name })
	return m, nil
}

func funcExtern(module, name string, def api.FunctionDefinition) Extern {
	return Extern{
		Module:  module,
		Name:    name,
		Kind:    ExternFunc,
		Params:  typeNames(def.ParamTypes()),
		Results: typeNames(def.ResultTypes()),
	}
}

func typeNames(ts []api.ValueType) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

// Export looks up an export by name.
func (m *Module) Export(name string) (Extern, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Extern{}, false
}

// EntryPoint checks that name is exported as a function of type () -> ().
func (m *Module) EntryPoint(name string) (Extern, error) {
	e, ok := m.Export(name)
	if !ok {
		return Extern{}, errors.EntryPointNotFound(name)
	}
	if e.Kind != ExternFunc {
		return e, errors.SignatureMismatch(name, fmt.Sprintf("non-function export (%s)", e.Kind))
	}
	if len(e.Params) != 0 || len(e.Results) != 0 {
		return e, errors.SignatureMismatch(name, e.Signature())
	}
	return e, nil
}

// Unresolved returns the sorted "module#name" keys of imports the resolver
// does not provide.
func (m *Module) Unresolved(provides Resolver) []string {
	var missing []string
	for _, imp := range m.Imports {
		if !provides(imp.Module, imp.Name) {
			missing = append(missing, imp.Key())
		}
	}
	return missing
}

// Namespaces returns the distinct import namespaces, sorted.
func (m *Module) Namespaces() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, imp := range m.Imports {
		if _, ok := seen[imp.Module]; ok {
			continue
		}
		seen[imp.Module] = struct{}{}
		out = append(out, imp.Module)
	}
	sort.Strings(out)
	return out
}
