package shader

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrDuplicateShader is returned when a shader key is defined twice.
	ErrDuplicateShader = errors.New("shader: duplicate shader key")
	// ErrUnknownShader is returned when a shader key has not been defined.
	ErrUnknownShader = errors.New("shader: unknown shader key")
)

// library is the implementation of the Library interface.
type library struct {
	mu       *sync.RWMutex
	registry SourceRegistry
	defs     map[string]Descriptor
	gens     map[string]uint64
	nextGen  uint64

	compiled  *lru.Cache[string, Shader]
	cacheSize int
}

// Library holds named shader definitions and compiles permutations of them on demand.
// Compiled variants are cached by key and permutation. Safe for concurrent use.
type Library interface {
	// Define adds a shader definition.
	//
	// Parameters:
	//   - desc: the shader key, virtual path and stage
	//
	// Returns:
	//   - error: ErrDuplicateShader if the key is taken
	Define(desc Descriptor) error

	// Undefine removes a shader definition and drops its compiled variants.
	//
	// Parameters:
	//   - key: the shader key
	//
	// Returns:
	//   - error: ErrUnknownShader if the key is not defined
	Undefine(key string) error

	// Definition returns the descriptor registered for a key.
	//
	// Parameters:
	//   - key: the shader key
	//
	// Returns:
	//   - Descriptor: the definition
	//   - bool: false if undefined
	Definition(key string) (Descriptor, bool)

	// Keys returns every defined shader key, sorted.
	//
	// Returns:
	//   - []string: the keys
	Keys() []string

	// Shader returns the compiled variant for a key and permutation, compiling it on first use.
	//
	// Parameters:
	//   - key: the shader key
	//   - permutation: the defines selecting the variant
	//
	// Returns:
	//   - Shader: the compiled shader
	//   - error: ErrUnknownShader, or the compile error
	Shader(key string, permutation Permutation) (Shader, error)

	// Purge drops every compiled variant so the next Shader call recompiles from source.
	Purge()

	// Registry returns the source registry shaders are read through.
	//
	// Returns:
	//   - SourceRegistry: the registry
	Registry() SourceRegistry
}

var _ Library = &library{}

// NewLibrary creates a Library that reads sources through the given registry.
//
// Parameters:
//   - registry: the source registry
//   - opts: optional builder options
//
// Returns:
//   - Library: the new library
func NewLibrary(registry SourceRegistry, opts ...LibraryBuilderOption) Library {
	if registry == nil {
		panic("shader: library requires a source registry")
	}
	l := &library{
		mu:        &sync.RWMutex{},
		registry:  registry,
		defs:      make(map[string]Descriptor),
		gens:      make(map[string]uint64),
		cacheSize: 256,
	}
	for _, opt := range opts {
		opt(l)
	}

	cache, err := lru.New[string, Shader](l.cacheSize)
	if err != nil {
		panic(fmt.Sprintf("shader: invalid compiled cache size %d: %v", l.cacheSize, err))
	}
	l.compiled = cache
	return l
}

func cacheKey(key string, p Permutation) string {
	return key + "|" + p.Key()
}

func (l *library) Define(desc Descriptor) error {
	if desc.Key == "" || desc.VirtualPath == "" {
		return fmt.Errorf("shader: definition needs a key and a virtual path: %+v", desc)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.defs[desc.Key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateShader, desc.Key)
	}
	l.defs[desc.Key] = desc
	l.nextGen++
	l.gens[desc.Key] = l.nextGen
	return nil
}

func (l *library) Undefine(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.defs[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownShader, key)
	}
	delete(l.defs, key)
	delete(l.gens, key)

	prefix := key + "|"
	for _, k := range l.compiled.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			l.compiled.Remove(k)
		}
	}
	return nil
}

func (l *library) Definition(key string) (Descriptor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.defs[key]
	return d, ok
}

func (l *library) Keys() []string {
	l.mu.RLock()
	keys := make([]string, 0, len(l.defs))
	for k := range l.defs {
		keys = append(keys, k)
	}
	l.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

func (l *library) Shader(key string, permutation Permutation) (Shader, error) {
	ck := cacheKey(key, permutation)
	if s, ok := l.compiled.Get(ck); ok {
		return s, nil
	}

	l.mu.RLock()
	desc, ok := l.defs[key]
	gen := l.gens[key]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShader, key)
	}

	s, err := Compile(NewPreProcessor(l.registry), desc, permutation)
	if err != nil {
		return nil, err
	}

	// a definition replaced during compilation keeps its stale variant out of the cache
	l.mu.RLock()
	if l.gens[key] == gen {
		l.compiled.Add(ck, s)
	}
	l.mu.RUnlock()
	return s, nil
}

func (l *library) Purge() {
	l.compiled.Purge()
}

func (l *library) Registry() SourceRegistry {
	return l.registry
}
