package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateMapping is returned when a logical name is registered twice.
	ErrDuplicateMapping = errors.New("shader: duplicate source mapping")
	// ErrNotFound is returned when a logical name or virtual path has no registered mapping.
	ErrNotFound = errors.New("shader: source mapping not found")
	// ErrInvalidMapping is returned for an empty logical name or a relative directory.
	ErrInvalidMapping = errors.New("shader: invalid source mapping")
)

// SourceMapping pairs a logical shader namespace with the directory its sources live in.
type SourceMapping struct {
	// LogicalName is the virtual path prefix, always starting with "/" (e.g. "/Plugin/VARID").
	LogicalName string
	// Directory is the absolute directory path, empty for mappings registered with RegisterFS.
	Directory string
}

// sourceEntry is a registered mapping together with the filesystem it reads from.
type sourceEntry struct {
	mapping SourceMapping
	fsys    fs.FS
}

// sourceRegistry is the implementation of the SourceRegistry interface.
type sourceRegistry struct {
	mu      *sync.RWMutex
	entries map[string]sourceEntry

	// openDir creates the filesystem for a registered directory. Defaults to os.DirFS.
	openDir func(dir string) fs.FS
}

// SourceRegistry maps logical shader namespaces to physical directories so that include
// directives such as #include "/Plugin/VARID/Private/Common.wgsl" can be resolved.
//
// Mappings are process-wide state. They are written only during module load and unload and
// read while shaders compile, so reads take a shared lock and never block each other.
type SourceRegistry interface {
	// Register maps a logical name to an absolute directory.
	// The directory is not required to exist yet; reads through it fail until it does.
	//
	// Parameters:
	//   - logicalName: the virtual prefix, a leading "/" is added if missing
	//   - directory: the absolute directory the prefix resolves to
	//
	// Returns:
	//   - error: ErrDuplicateMapping if the name is taken, ErrInvalidMapping for bad input
	Register(logicalName, directory string) error

	// RegisterFS maps a logical name to an fs.FS, such as an embed.FS holding engine shaders.
	//
	// Parameters:
	//   - logicalName: the virtual prefix, a leading "/" is added if missing
	//   - fsys: the filesystem rooted at the prefix
	//
	// Returns:
	//   - error: ErrDuplicateMapping if the name is taken, ErrInvalidMapping for bad input
	RegisterFS(logicalName string, fsys fs.FS) error

	// Unregister removes a mapping. Each successful Register is matched by exactly one
	// successful Unregister; a second call fails.
	//
	// Parameters:
	//   - logicalName: the virtual prefix to remove
	//
	// Returns:
	//   - error: ErrNotFound if no mapping exists for the name
	Unregister(logicalName string) error

	// Lookup returns the mapping for a logical name.
	//
	// Parameters:
	//   - logicalName: the virtual prefix
	//
	// Returns:
	//   - SourceMapping: the mapping if present
	//   - bool: false if the name is not registered
	Lookup(logicalName string) (SourceMapping, bool)

	// Mappings returns a snapshot of every mapping sorted by logical name.
	//
	// Returns:
	//   - []SourceMapping: the registered mappings
	Mappings() []SourceMapping

	// Resolve converts a virtual path into a physical file path using the longest matching
	// logical prefix. Mappings registered with RegisterFS resolve to their virtual path.
	//
	// Parameters:
	//   - virtualPath: a path such as "/Plugin/VARID/Private/HeightMapCS.wgsl"
	//
	// Returns:
	//   - string: the physical path
	//   - error: ErrNotFound if no prefix matches
	Resolve(virtualPath string) (string, error)

	// ReadFile reads a shader source file by virtual path.
	//
	// Parameters:
	//   - virtualPath: the virtual path of the file
	//
	// Returns:
	//   - []byte: the file contents
	//   - error: ErrNotFound if no prefix matches, or the underlying read error
	ReadFile(virtualPath string) ([]byte, error)
}

var _ SourceRegistry = &sourceRegistry{}

// NewSourceRegistry creates an empty SourceRegistry.
//
// Parameters:
//   - opts: optional builder options
//
// Returns:
//   - SourceRegistry: the new registry
func NewSourceRegistry(opts ...SourceRegistryBuilderOption) SourceRegistry {
	r := &sourceRegistry{
		mu:      &sync.RWMutex{},
		entries: make(map[string]sourceEntry),
		openDir: func(dir string) fs.FS { return os.DirFS(dir) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// normalizeLogicalName adds the leading slash and strips a trailing one.
func normalizeLogicalName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "/" {
		return "", fmt.Errorf("%w: empty logical name", ErrInvalidMapping)
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return path.Clean(name), nil
}

func (r *sourceRegistry) Register(logicalName, directory string) error {
	name, err := normalizeLogicalName(logicalName)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(directory) {
		return fmt.Errorf("%w: directory %q for %q is not absolute", ErrInvalidMapping, directory, name)
	}
	directory = filepath.Clean(directory)

	return r.add(sourceEntry{
		mapping: SourceMapping{LogicalName: name, Directory: directory},
		fsys:    r.openDir(directory),
	})
}

func (r *sourceRegistry) RegisterFS(logicalName string, fsys fs.FS) error {
	name, err := normalizeLogicalName(logicalName)
	if err != nil {
		return err
	}
	if fsys == nil {
		return fmt.Errorf("%w: nil filesystem for %q", ErrInvalidMapping, name)
	}

	return r.add(sourceEntry{
		mapping: SourceMapping{LogicalName: name},
		fsys:    fsys,
	})
}

func (r *sourceRegistry) add(e sourceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.mapping.LogicalName]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateMapping, e.mapping.LogicalName)
	}
	r.entries[e.mapping.LogicalName] = e
	return nil
}

func (r *sourceRegistry) Unregister(logicalName string) error {
	name, err := normalizeLogicalName(logicalName)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNotFound, logicalName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(r.entries, name)
	return nil
}

func (r *sourceRegistry) Lookup(logicalName string) (SourceMapping, bool) {
	name, err := normalizeLogicalName(logicalName)
	if err != nil {
		return SourceMapping{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e.mapping, ok
}

func (r *sourceRegistry) Mappings() []SourceMapping {
	r.mu.RLock()
	out := make([]SourceMapping, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.mapping)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LogicalName < out[j].LogicalName
	})
	return out
}

// match finds the entry with the longest logical prefix of virtualPath and returns the
// remaining path relative to that prefix.
func (r *sourceRegistry) match(virtualPath string) (sourceEntry, string, error) {
	if !strings.HasPrefix(virtualPath, "/") {
		virtualPath = "/" + virtualPath
	}
	clean := path.Clean(virtualPath)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best    sourceEntry
		bestLen = -1
	)
	for name, e := range r.entries {
		if clean != name && !strings.HasPrefix(clean, name+"/") {
			continue
		}
		if len(name) > bestLen {
			best, bestLen = e, len(name)
		}
	}
	if bestLen < 0 {
		return sourceEntry{}, "", fmt.Errorf("%w: no mapping for %q", ErrNotFound, virtualPath)
	}

	rel := strings.TrimPrefix(strings.TrimPrefix(clean, best.mapping.LogicalName), "/")
	if rel == "" {
		rel = "."
	}
	return best, rel, nil
}

func (r *sourceRegistry) Resolve(virtualPath string) (string, error) {
	e, rel, err := r.match(virtualPath)
	if err != nil {
		return "", err
	}
	if e.mapping.Directory == "" {
		return path.Join(e.mapping.LogicalName, rel), nil
	}
	return filepath.Join(e.mapping.Directory, filepath.FromSlash(rel)), nil
}

func (r *sourceRegistry) ReadFile(virtualPath string) ([]byte, error) {
	e, rel, err := r.match(virtualPath)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(e.fsys, rel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", virtualPath, err)
	}
	return data, nil
}
