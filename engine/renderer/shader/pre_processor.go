// pre_processor.go implements the WGSL source pre-processor. WGSL has no include or
// conditional compilation of its own, so shader sources use a small directive set that is
// expanded here before the source reaches the GPU compiler:
//
//	#include "/Plugin/VARID/Private/Common.wgsl"   resolved through the SourceRegistry
//	#ifdef NAME / #ifndef NAME / #else / #endif    evaluated against the Permutation
//
// Every file is included at most once per compilation. Permutation values are emitted as
// module scope `const NAME: i32 = value;` declarations ahead of the expanded source.
package shader

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ErrIncludeCycle is returned when a file includes itself directly or transitively.
var ErrIncludeCycle = errors.New("shader: include cycle")

// Permutation selects a compiled variant of a shader. Keys are define names, values are
// emitted as i32 constants; a define is "set" for #ifdef purposes when present in the map.
type Permutation map[string]int

// Key returns a canonical string for the permutation, used for caching compiled variants.
//
// Returns:
//   - string: sorted "NAME=value" pairs joined by commas, empty for no defines
func (p Permutation) Key() string {
	if len(p) == 0 {
		return ""
	}
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(p[name]))
	}
	return sb.String()
}

// conditionFrame is one level of #ifdef nesting.
type conditionFrame struct {
	active    bool
	parent    bool
	seenElse  bool
	startLine int
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	registry SourceRegistry

	// includes accumulates every virtual path pulled into the last Process call, in first-seen order.
	includes []string
}

// PreProcessor expands include and conditional directives in WGSL sources that live under
// registered logical shader namespaces. A PreProcessor is not safe for concurrent use.
type PreProcessor interface {
	// Process reads the shader at virtualPath and returns the fully expanded WGSL source.
	//
	// The includes list is reset at the start of each call and can be retrieved via Includes()
	// after Process returns.
	//
	// Parameters:
	//   - virtualPath: the virtual path of the root shader file
	//   - permutation: the defines selecting the compiled variant
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: ErrNotFound for unresolvable paths, ErrIncludeCycle, or a directive error
	Process(virtualPath string, permutation Permutation) (string, error)

	// Includes returns the virtual paths of the root file and every included file from the
	// most recent call to Process, in the order they were first read.
	//
	// Returns:
	//   - []string: the included virtual paths
	Includes() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves includes through the given registry.
//
// Parameters:
//   - registry: the registry used to read shader files by virtual path
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(registry SourceRegistry) PreProcessor {
	if registry == nil {
		panic("shader: pre-processor requires a source registry")
	}
	return &preProcessor{registry: registry}
}

func (p *preProcessor) Process(virtualPath string, permutation Permutation) (string, error) {
	p.includes = nil

	var out []string
	if len(permutation) > 0 {
		names := make([]string, 0, len(permutation))
		for name := range permutation {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, fmt.Sprintf("const %s: i32 = %d;", name, permutation[name]))
		}
	}

	seen := make(map[string]bool)
	body, err := p.expand(path.Clean(virtualPath), permutation, seen, nil)
	if err != nil {
		return "", err
	}
	out = append(out, body...)
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Includes() []string {
	return slices.Clone(p.includes)
}

// expand reads one file and returns its expanded lines. stack holds the include chain used
// for cycle detection; seen holds every file already emitted in this compilation.
func (p *preProcessor) expand(virtualPath string, permutation Permutation, seen map[string]bool, stack []string) ([]string, error) {
	for _, s := range stack {
		if s == virtualPath {
			return nil, fmt.Errorf("%w: %s -> %s", ErrIncludeCycle, strings.Join(stack, " -> "), virtualPath)
		}
	}
	if seen[virtualPath] {
		return nil, nil
	}
	seen[virtualPath] = true
	p.includes = append(p.includes, virtualPath)

	data, err := p.registry.ReadFile(virtualPath)
	if err != nil {
		return nil, err
	}
	stack = append(stack, virtualPath)

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	var conds []conditionFrame
	active := true

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active {
				out = append(out, line)
			}
			continue
		}

		directive, arg := splitDirective(trimmed)

		switch directive {
		case "#ifdef", "#ifndef":
			if arg == "" {
				return nil, fmt.Errorf("%s:%d: %s requires a name", virtualPath, lineNo, directive)
			}
			_, defined := permutation[arg]
			cond := defined
			if directive == "#ifndef" {
				cond = !defined
			}
			conds = append(conds, conditionFrame{active: active && cond, parent: active, startLine: lineNo})
		case "#else":
			if len(conds) == 0 {
				return nil, fmt.Errorf("%s:%d: #else without #ifdef", virtualPath, lineNo)
			}
			top := &conds[len(conds)-1]
			if top.seenElse {
				return nil, fmt.Errorf("%s:%d: duplicate #else", virtualPath, lineNo)
			}
			top.seenElse = true
			top.active = top.parent && !top.active
		case "#endif":
			if len(conds) == 0 {
				return nil, fmt.Errorf("%s:%d: #endif without #ifdef", virtualPath, lineNo)
			}
			conds = conds[:len(conds)-1]
		case "#include":
			if !active {
				continue
			}
			target, err := parseIncludeTarget(arg)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", virtualPath, lineNo, err)
			}
			if !strings.HasPrefix(target, "/") {
				target = path.Join(path.Dir(virtualPath), target)
			}
			included, err := p.expand(path.Clean(target), permutation, seen, stack)
			if err != nil {
				return nil, err
			}
			out = append(out, included...)
		default:
			return nil, fmt.Errorf("%s:%d: unknown directive %q", virtualPath, lineNo, directive)
		}

		active = len(conds) == 0 || conds[len(conds)-1].active
	}

	if len(conds) > 0 {
		return nil, fmt.Errorf("%s:%d: unterminated conditional block", virtualPath, conds[len(conds)-1].startLine)
	}
	return out, nil
}

// parseIncludeTarget extracts the quoted path of an #include directive.
func parseIncludeTarget(arg string) (string, error) {
	if len(arg) < 2 || arg[0] != '"' || arg[len(arg)-1] != '"' {
		return "", fmt.Errorf("malformed #include %q, expected a quoted path", arg)
	}
	target := arg[1 : len(arg)-1]
	if target == "" {
		return "", errors.New("empty #include path")
	}
	return target, nil
}

// splitDirective splits a directive line at its first run of whitespace.
func splitDirective(line string) (directive, arg string) {
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}
