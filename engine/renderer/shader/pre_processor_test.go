package shader

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreProcessor(t *testing.T, files map[string]string) PreProcessor {
	t.Helper()
	m := fstest.MapFS{}
	for name, src := range files {
		m[name] = &fstest.MapFile{Data: []byte(src)}
	}
	reg := NewSourceRegistry()
	require.NoError(t, reg.RegisterFS("/Plugin/VARID", m))
	return NewPreProcessor(reg)
}

func TestPreProcessor_IncludesOnce(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/Common.wgsl": "const GROUP_SIZE: u32 = 8u;",
		"Private/Helpers.wgsl": strings.Join([]string{
			`#include "/Plugin/VARID/Private/Common.wgsl"`,
			"fn helper() {}",
		}, "\n"),
		"Private/Main.wgsl": strings.Join([]string{
			`#include "/Plugin/VARID/Private/Common.wgsl"`,
			`#include "Helpers.wgsl"`,
			"fn main_cs() {}",
		}, "\n"),
	})

	out, err := pp.Process("/Plugin/VARID/Private/Main.wgsl", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "const GROUP_SIZE"))
	assert.Less(t, strings.Index(out, "GROUP_SIZE"), strings.Index(out, "fn helper"))
	assert.Less(t, strings.Index(out, "fn helper"), strings.Index(out, "fn main_cs"))
	assert.Equal(t, []string{
		"/Plugin/VARID/Private/Main.wgsl",
		"/Plugin/VARID/Private/Common.wgsl",
		"/Plugin/VARID/Private/Helpers.wgsl",
	}, pp.Includes())
}

func TestPreProcessor_IncludesSurviveNextProcess(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/Common.wgsl": "const GROUP_SIZE: u32 = 8u;",
		"Private/Blur.wgsl":   `#include "Common.wgsl"` + "\nfn blur() {}",
		"Private/Warp.wgsl":   "fn warp() {}",
	})

	_, err := pp.Process("/Plugin/VARID/Private/Blur.wgsl", nil)
	require.NoError(t, err)
	blur := pp.Includes()

	_, err = pp.Process("/Plugin/VARID/Private/Warp.wgsl", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/Plugin/VARID/Private/Blur.wgsl",
		"/Plugin/VARID/Private/Common.wgsl",
	}, blur)
	assert.Equal(t, []string{"/Plugin/VARID/Private/Warp.wgsl"}, pp.Includes())
}

func TestPreProcessor_DirectiveWhitespace(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/Main.wgsl": strings.Join([]string{
			"#ifdef\tVF_MAP",
			"const MODE: u32 = 1u;",
			"#else",
			"const MODE: u32 = 0u;",
			"#endif  ",
		}, "\n"),
	})

	out, err := pp.Process("/Plugin/VARID/Private/Main.wgsl", Permutation{"VF_MAP": 1})
	require.NoError(t, err)
	assert.Contains(t, out, "const MODE: u32 = 1u;")
	assert.NotContains(t, out, "const MODE: u32 = 0u;")
}

func TestPreProcessor_Conditionals(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/Resample.wgsl": strings.Join([]string{
			"#ifdef VF_MAP",
			"var out_tex: texture_storage_2d<r32float, write>;",
			"#else",
			"var out_tex: texture_storage_2d<rgba16float, write>;",
			"#endif",
			"#ifndef VF_MAP",
			"fn colour() {}",
			"#endif",
		}, "\n"),
	})

	vf, err := pp.Process("/Plugin/VARID/Private/Resample.wgsl", Permutation{"VF_MAP": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(vf, "const VF_MAP: i32 = 1;"))
	assert.Contains(t, vf, "r32float")
	assert.NotContains(t, vf, "rgba16float")
	assert.NotContains(t, vf, "fn colour")

	colour, err := pp.Process("/Plugin/VARID/Private/Resample.wgsl", nil)
	require.NoError(t, err)
	assert.NotContains(t, colour, "VF_MAP")
	assert.Contains(t, colour, "rgba16float")
	assert.Contains(t, colour, "fn colour")
}

func TestPreProcessor_NestedConditionalsInsideInactiveBranch(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/A.wgsl": strings.Join([]string{
			"#ifdef OUTER",
			"#ifndef INNER",
			"inner_off",
			"#endif",
			"#else",
			"outer_off",
			"#endif",
		}, "\n"),
	})

	out, err := pp.Process("/Plugin/VARID/Private/A.wgsl", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "outer_off")
	assert.NotContains(t, out, "inner_off")
}

func TestPreProcessor_IncludeCycle(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/A.wgsl": `#include "B.wgsl"`,
		"Private/B.wgsl": `#include "A.wgsl"`,
	})

	_, err := pp.Process("/Plugin/VARID/Private/A.wgsl", nil)
	assert.ErrorIs(t, err, ErrIncludeCycle)
}

func TestPreProcessor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{name: "StrayEndif", source: "#endif", want: "A.wgsl:1: #endif without #ifdef"},
		{name: "StrayElse", source: "x\n#else", want: "A.wgsl:2: #else without #ifdef"},
		{name: "DuplicateElse", source: "#ifdef X\n#else\n#else\n#endif", want: "A.wgsl:3: duplicate #else"},
		{name: "Unterminated", source: "#ifdef X\nfoo", want: "A.wgsl:1: unterminated"},
		{name: "UnknownDirective", source: "#pragma once", want: `unknown directive "#pragma"`},
		{name: "UnquotedInclude", source: "#include Common.wgsl", want: "malformed #include"},
		{name: "MissingName", source: "#ifdef", want: "#ifdef requires a name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := newTestPreProcessor(t, map[string]string{"Private/A.wgsl": tt.source})
			_, err := pp.Process("/Plugin/VARID/Private/A.wgsl", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPreProcessor_UnresolvableInclude(t *testing.T) {
	pp := newTestPreProcessor(t, map[string]string{
		"Private/A.wgsl": `#include "/Engine/Private/Missing.wgsl"`,
	})

	_, err := pp.Process("/Plugin/VARID/Private/A.wgsl", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPermutation_Key(t *testing.T) {
	assert.Equal(t, "", Permutation(nil).Key())
	assert.Equal(t, "A=2,B=1", Permutation{"B": 1, "A": 2}.Key())
}
