package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct{ Tol float64 }

type sampleConf struct {
	Tol float64 `json:"tolerance"`
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sample]()
	require.NoError(t, reg.Register("s", func(conf map[string]any) (*sample, error) {
		var c sampleConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sample{Tol: c.Tol}, nil
	}))
	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"tolerance": 1e-6}})
	require.NoError(t, err)
	assert.Equal(t, 1e-6, inst.Tol)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("z", nil))

	_, err := reg.Create(ModuleConfig{Type: "y"})
	assert.True(t, errors.Is(err, ErrUnknownModule))
	assert.Equal(t, []string{"x"}, reg.Names())
}

func TestDecode_WeakStrings(t *testing.T) {
	var c sampleConf
	require.NoError(t, Decode(map[string]any{"tolerance": "0.5"}, &c))
	assert.Equal(t, 0.5, c.Tol)
}
