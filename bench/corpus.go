package bench

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/wippyai/wasm-bench/errors"
)

const (
	// DefaultRoot is the corpus location relative to the working directory.
	DefaultRoot = "sightglass/benchmarks-next"

	// RootEnv overrides DefaultRoot.
	RootEnv = "WASM_BENCH_ROOT"

	// ModuleFile is the module each benchmark directory holds.
	ModuleFile = "benchmark.wasm"
)

// DefaultSuite is the set of benchmarks run when none are named.
var DefaultSuite = []string{
	"pulldown-cmark",
	"bz2",
	"shootout-base64",
	"shootout-fib2",
	"shootout-heapsort",
	"shootout-keccak",
	"shootout-ed25519",
}

// Benchmark is one corpus entry. Dir is absolute; the guest runs with Dir
// as its working directory so it can open its input files.
type Benchmark struct {
	Name string
	Dir  string
	Path string
}

// Read loads the benchmark's module bytes. The benchmark was resolved, so a
// module that cannot be read any more is a fatal harness error.
func (b Benchmark) Read() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, errors.Fatal("read "+b.Path, err)
	}
	return data, nil
}

// Corpus is a directory of benchmark directories.
type Corpus struct {
	Root string
}

// NewCorpus returns a corpus rooted at root, falling back to $WASM_BENCH_ROOT
// and then DefaultRoot.
func NewCorpus(root string) *Corpus {
	if root == "" {
		root = os.Getenv(RootEnv)
	}
	if root == "" {
		root = DefaultRoot
	}
	return &Corpus{Root: root}
}

// Resolve locates a benchmark by directory name.
func (c *Corpus) Resolve(name string) (Benchmark, error) {
	if name == "" || name != filepath.Base(name) {
		return Benchmark{}, errors.NotFound(errors.PhaseHarness, "benchmark", name)
	}
	dir, err := filepath.Abs(filepath.Join(c.Root, name))
	if err != nil {
		return Benchmark{}, errors.IO(errors.PhaseHarness, "resolve "+name, err)
	}
	path := filepath.Join(dir, ModuleFile)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Benchmark{}, errors.New(errors.PhaseHarness, errors.KindNotFound).
			Value(path).
			Detail("benchmark %q not found", name).
			Cause(err).
			Build()
	}
	return Benchmark{Name: name, Dir: dir, Path: path}, nil
}

// Discover lists every subdirectory of the root holding a benchmark module,
// sorted by name.
func (c *Corpus) Discover() ([]Benchmark, error) {
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		return nil, errors.IO(errors.PhaseHarness, "list "+c.Root, err)
	}
	var out []Benchmark
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		b, err := c.Resolve(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Select resolves names, or DefaultSuite when names is empty. Names that do
// not resolve are returned separately so the caller can report and skip them.
func (c *Corpus) Select(names []string) ([]Benchmark, []error) {
	if len(names) == 0 {
		names = DefaultSuite
	}
	var (
		found []Benchmark
		errs  []error
	)
	for _, name := range names {
		b, err := c.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = append(found, b)
	}
	return found, errs
}
