package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in the benchmark pipeline the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // engine construction
	PhaseCompile     Phase = "compile"     // bytecode to artifact
	PhaseDeserialize Phase = "deserialize" // artifact to module
	PhaseSession     Phase = "session"     // store and capability setup
	PhaseLink        Phase = "link"        // import resolution
	PhaseExecute     Phase = "execute"     // entry point invocation
	PhaseInspect     Phase = "inspect"     // static module introspection
	PhaseHarness     Phase = "harness"     // discovery, files, working directory
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidConfig        Kind = "invalid_config"
	KindUnsupported          Kind = "unsupported"
	KindInvalidBytecode      Kind = "invalid_bytecode"
	KindIncompatibleArtifact Kind = "incompatible_artifact"
	KindMissingImport        Kind = "missing_import"
	KindLink                 Kind = "link"
	KindResourceLimit        Kind = "resource_limit_exceeded"
	KindEntryPointNotFound   Kind = "entry_point_not_found"
	KindSignatureMismatch    Kind = "signature_mismatch"
	KindTrapped              Kind = "trapped"
	KindNotFound             Kind = "not_found"
	KindIO                   Kind = "io"
	KindFatal                Kind = "fatal"
)

// Reason tells why a guest call trapped. Only set on KindTrapped errors.
type Reason string

const (
	ReasonFuelExhausted Reason = "fuel_exhausted"
	ReasonEpochExpired  Reason = "epoch_expired"
	ReasonGuestTrap     Reason = "guest_trap"
	ReasonExit          Reason = "exit"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Reason Reason
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Reason != "" {
		b.WriteByte('(')
		b.WriteString(string(e.Reason))
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Phase and Kind must be equal; Reason is compared only when target sets it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Phase != t.Phase || e.Kind != t.Kind {
		return false
	}
	return t.Reason == "" || e.Reason == t.Reason
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Reason sets the trap reason
func (b *Builder) Reason(r Reason) *Builder {
	b.err.Reason = r
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is checks. They carry no detail or cause.
var (
	ErrConfig             = &Error{Phase: PhaseConfig, Kind: KindInvalidConfig}
	ErrUnsupportedTarget  = &Error{Phase: PhaseConfig, Kind: KindUnsupported}
	ErrCompile            = &Error{Phase: PhaseCompile, Kind: KindInvalidBytecode}
	ErrIncompatible       = &Error{Phase: PhaseDeserialize, Kind: KindIncompatibleArtifact}
	ErrMissingImport      = &Error{Phase: PhaseLink, Kind: KindMissingImport}
	ErrLink               = &Error{Phase: PhaseLink, Kind: KindLink}
	ErrResourceLimit      = &Error{Phase: PhaseLink, Kind: KindResourceLimit}
	ErrEntryPointNotFound = &Error{Phase: PhaseExecute, Kind: KindEntryPointNotFound}
	ErrSignatureMismatch  = &Error{Phase: PhaseExecute, Kind: KindSignatureMismatch}
	ErrTrapped            = &Error{Phase: PhaseExecute, Kind: KindTrapped}
	ErrFuelExhausted      = &Error{Phase: PhaseExecute, Kind: KindTrapped, Reason: ReasonFuelExhausted}
	ErrEpochExpired       = &Error{Phase: PhaseExecute, Kind: KindTrapped, Reason: ReasonEpochExpired}
	ErrGuestTrap          = &Error{Phase: PhaseExecute, Kind: KindTrapped, Reason: ReasonGuestTrap}
	ErrFatal              = &Error{Phase: PhaseHarness, Kind: KindFatal}
)

// Convenience constructors for common error patterns

// Config creates an engine configuration error
func Config(detail string, args ...any) *Error {
	return New(PhaseConfig, KindInvalidConfig).Detail(detail, args...).Build()
}

// UnsupportedTarget creates an error for a target triple the host cannot run
func UnsupportedTarget(triple, host string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindUnsupported,
		Value:  triple,
		Detail: fmt.Sprintf("target %q cannot run on host %q", triple, host),
	}
}

// Compile creates a compilation error
func Compile(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidBytecode,
		Detail: detail,
		Cause:  cause,
	}
}

// Incompatible creates an artifact/engine mismatch error
func Incompatible(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseDeserialize,
		Kind:   KindIncompatibleArtifact,
		Detail: detail,
		Cause:  cause,
	}
}

// Link creates a link error
func Link(cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindLink,
		Detail: "link module",
		Cause:  cause,
	}
}

// MissingImports creates a link error for unresolved imports
func MissingImports(imports []string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindMissingImport,
		Detail: fmt.Sprintf("%d unresolved import(s)", len(imports)),
		Cause:  NewMissingImportsError(imports),
	}
}

// ResourceLimit creates a resource limit error
func ResourceLimit(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindResourceLimit,
		Detail: detail,
		Cause:  cause,
	}
}

// EntryPointNotFound creates an error for an absent entry export
func EntryPointNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindEntryPointNotFound,
		Value:  name,
		Detail: fmt.Sprintf("export %q not found", name),
	}
}

// SignatureMismatch creates an error for an entry export that is not () -> ()
func SignatureMismatch(name, got string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindSignatureMismatch,
		Value:  name,
		Detail: fmt.Sprintf("export %q has type %s, want () -> ()", name, got),
	}
}

// Trapped creates an execution trap error
func Trapped(reason Reason, cause error) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindTrapped,
		Reason: reason,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// IO creates a host I/O error
func IO(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Fatal creates a harness error that must abort the run
func Fatal(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseHarness,
		Kind:   KindFatal,
		Detail: detail,
		Cause:  cause,
	}
}

// TrapReasonOf returns the trap reason carried by err, if any.
func TrapReasonOf(err error) (Reason, bool) {
	var e *Error
	if !stderrors.As(err, &e) || e.Kind != KindTrapped {
		return "", false
	}
	return e.Reason, true
}

// Recoverable reports whether a benchmark run may continue after err.
// Configuration errors and fatal harness errors abort the run; everything
// else is confined to one benchmark or one iteration.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	switch e.Phase {
	case PhaseConfig:
		return false
	case PhaseHarness:
		return e.Kind != KindFatal
	}
	return true
}

// SkipsBenchmark reports whether err invalidates every remaining iteration
// of a benchmark, as opposed to a single iteration.
func SkipsBenchmark(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case KindInvalidBytecode, KindIncompatibleArtifact, KindMissingImport,
		KindEntryPointNotFound, KindSignatureMismatch, KindNotFound, KindIO:
		return true
	}
	return false
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Module string // e.g., "env"
	Name   string // e.g., "abort"
}

// MissingImportsError lists the imports a module needs but no linker provides
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "module#name" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, name, _ := strings.Cut(imp, "#")
		result.Imports = append(result.Imports, MissingImport{Module: mod, Name: name})
	}
	return result
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[link] missing_import: no imports specified"
	}

	byModule := make(map[string][]string)
	for _, imp := range e.Imports {
		byModule[imp.Module] = append(byModule[imp.Module], imp.Name)
	}
	modules := make([]string, 0, len(byModule))
	for mod := range byModule {
		modules = append(modules, mod)
	}
	sort.Strings(modules)

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host function(s):", len(e.Imports))
	for _, mod := range modules {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteByte(':')
		for _, name := range byModule[mod] {
			b.WriteString("\n    - ")
			b.WriteString(name)
		}
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
