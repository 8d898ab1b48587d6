package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recorder builds steps that log their calls.
type recorder struct {
	calls []string
}

func (r *recorder) step(name string, failDo, failUndo bool) Step {
	return Step{
		Name: name,
		Do: func(context.Context) error {
			r.calls = append(r.calls, "do "+name)
			if failDo {
				return errors.New(name + " failed")
			}
			return nil
		},
		Undo: func(context.Context) error {
			r.calls = append(r.calls, "undo "+name)
			if failUndo {
				return errors.New(name + " undo failed")
			}
			return nil
		},
	}
}

func TestController_LoadAndUnload(t *testing.T) {
	rec := &recorder{}
	var transitions []string
	c := NewController("VARID", []Step{
		rec.step("shaders", false, false),
		rec.step("hook", false, false),
	}, WithTransitionHook(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))

	assert.Equal(t, StateUnloaded, c.State())
	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.IsActive())
	assert.ErrorIs(t, c.Load(context.Background()), ErrInvalidTransition)

	require.NoError(t, c.Unload(context.Background()))
	require.NoError(t, c.Unload(context.Background()), "second unload is a no-op")
	assert.Equal(t, StateUnloaded, c.State())

	assert.Equal(t, []string{"do shaders", "do hook", "undo hook", "undo shaders"}, rec.calls)
	assert.Equal(t, []string{
		"Unloaded->Loading", "Loading->Active",
		"Active->Unloading", "Unloading->Unloaded",
	}, transitions)
}

func TestController_RollsBackPartialLoad(t *testing.T) {
	rec := &recorder{}
	c := NewController("VARID", []Step{
		rec.step("shaders", false, false),
		rec.step("defines", false, false),
		rec.step("hook", true, false),
		rec.step("never", false, false),
	})

	err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrPartialInitialization)
	assert.Contains(t, err.Error(), "hook failed")
	assert.Equal(t, StateUnloaded, c.State())
	assert.Equal(t, []string{"do shaders", "do defines", "do hook", "undo defines", "undo shaders"}, rec.calls)

	// a rolled back controller can load again
	rec.calls = nil
	c2 := NewController("VARID", []Step{rec.step("shaders", false, false)})
	require.NoError(t, c2.Load(context.Background()))
}

func TestController_UndoErrorsAreJoined(t *testing.T) {
	rec := &recorder{}
	c := NewController("VARID", []Step{
		rec.step("a", false, true),
		rec.step("b", false, true),
	})
	require.NoError(t, c.Load(context.Background()))

	err := c.Unload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a undo failed")
	assert.Contains(t, err.Error(), "b undo failed")
	assert.Equal(t, StateUnloaded, c.State(), "failed undos still end unloaded")
	assert.Equal(t, []string{"do a", "do b", "undo b", "undo a"}, rec.calls)
}

func TestController_CancelledLoad(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController("VARID", []Step{
		{Name: "cancel", Do: func(context.Context) error { cancel(); return nil }, Undo: func(context.Context) error {
			rec.calls = append(rec.calls, "undo cancel")
			return nil
		}},
		rec.step("after", false, false),
	})

	err := c.Load(ctx)
	assert.ErrorIs(t, err, ErrPartialInitialization)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"undo cancel"}, rec.calls)
}

func TestController_StateVisibleDuringSteps(t *testing.T) {
	var c Controller
	var seen State
	c = NewController("VARID", []Step{{Name: "peek", Do: func(context.Context) error {
		seen = c.State()
		return nil
	}}})

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, StateLoading, seen)
}

// TestController_ShaderThenFailingHook loads a shader mapping, fails to install the hook,
// and checks the mapping is gone afterwards.
func TestController_ShaderThenFailingHook(t *testing.T) {
	registry := shader.NewSourceRegistry()
	hooks := hook.NewTable()
	var reg hook.Registration

	c := NewController("VARID", []Step{
		{
			Name: "register shader source",
			Do: func(context.Context) error {
				return registry.Register("VARID", "/plugin/Shaders")
			},
			Undo: func(context.Context) error {
				return registry.Unregister("VARID")
			},
		},
		{
			Name: "install hook",
			Do: func(context.Context) error {
				var err error
				reg, err = hooks.Install(hook.Point(42), func(ctx *pass.Context) (pass.Output, error) {
					return pass.PassThrough(ctx), nil
				}, 0)
				return err
			},
			Undo: func(context.Context) error {
				return hooks.Uninstall(reg.Point(), reg)
			},
		},
	})

	err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrPartialInitialization)
	assert.ErrorIs(t, err, hook.ErrInvalidPoint)
	assert.Equal(t, StateUnloaded, c.State())
	assert.Empty(t, registry.Mappings())
	assert.Zero(t, hooks.Len())
}

func TestController_RegisterThenDoubleUnregister(t *testing.T) {
	registry := shader.NewSourceRegistry()
	c := NewController("VARID", []Step{{
		Name: "register shader source",
		Do: func(context.Context) error {
			return registry.Register("VARID", "/plugin/Shaders")
		},
	}})

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, registry.Unregister("VARID"))
	assert.ErrorIs(t, registry.Unregister("VARID"), shader.ErrNotFound)
}

// TestController_RollbackUndoesExactlyTheCompletedSteps fails a random step and checks
// the undo sequence mirrors the completed prefix.
func TestController_RollbackUndoesExactlyTheCompletedSteps(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "steps")
		fail := rapid.IntRange(0, n).Draw(t, "fail")

		rec := &recorder{}
		steps := make([]Step, n)
		for i := range steps {
			steps[i] = rec.step(fmt.Sprint(i), i == fail, false)
		}
		c := NewController("prop", steps)

		err := c.Load(context.Background())
		var want []string
		for i := 0; i < min(fail+1, n); i++ {
			want = append(want, fmt.Sprintf("do %d", i))
		}
		if fail < n {
			if !errors.Is(err, ErrPartialInitialization) {
				t.Fatalf("load: %v", err)
			}
			for i := fail - 1; i >= 0; i-- {
				want = append(want, fmt.Sprintf("undo %d", i))
			}
		} else {
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if err := c.Unload(context.Background()); err != nil {
				t.Fatalf("unload: %v", err)
			}
			for i := n - 1; i >= 0; i-- {
				want = append(want, fmt.Sprintf("undo %d", i))
			}
		}
		if c.State() != StateUnloaded {
			t.Fatalf("state %s", c.State())
		}
		if fmt.Sprint(rec.calls) != fmt.Sprint(want) {
			t.Fatalf("calls %v, want %v", rec.calls, want)
		}
	})
}
