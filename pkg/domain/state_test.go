package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRing builds root -> a -> b -> a, where b refers back to a.
func buildRing(t *testing.T, extra string) *State {
	t.Helper()
	b := NewGraphBuilder()
	root, err := b.Declare("root")
	require.NoError(t, err)
	a, _ := b.Declare("a")
	bb, _ := b.Declare("b")

	require.NoError(t, b.Define(root, StateDef{Children: []StateRef{a}}))
	require.NoError(t, b.Define(a, StateDef{
		Transitions: []*Transition{mustTransition(t, "next", "b", nil)},
		Children:    []StateRef{bb},
	}))
	require.NoError(t, b.Define(bb, StateDef{
		Transitions: []*Transition{mustTransition(t, "next", extra, nil)},
		Children:    []StateRef{a},
	}))
	g, err := b.Build(root)
	require.NoError(t, err)
	return g
}

func TestNewState_Duplicates(t *testing.T) {
	op := mustOperation(t, "op")
	trig1, _ := NewTrigger(EventTermination, op)
	trig2, _ := NewTrigger(EventTermination, mustOperation(t, "other"))
	child, _ := NewState("c", StateSpec{})
	twin, _ := NewState("c", StateSpec{})

	tests := []struct {
		name string
		spec StateSpec
	}{
		{"Trigger Event", StateSpec{Triggers: []*Trigger{trig1, trig2}}},
		{"Transition Name", StateSpec{Transitions: []*Transition{
			mustTransition(t, "t", "x", nil), mustTransition(t, "t", "y", nil),
		}}},
		{"Operation Name", StateSpec{Operations: []*Operation{op, mustOperation(t, "op")}}},
		{"Nested State Name", StateSpec{States: []*State{child, twin}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewState("s", tt.spec)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrMalformedGraph)
		})
	}
}

func TestState_AccessorsAreCopies(t *testing.T) {
	child, _ := NewState("child", StateSpec{})
	s, err := NewState("s", StateSpec{
		Transitions: []*Transition{mustTransition(t, "go", "child", nil)},
		States:      []*State{child},
	})
	require.NoError(t, err)

	transitions := s.Transitions()
	transitions[0] = nil
	states := s.States()
	states[0] = nil

	assert.NotNil(t, s.Transition("go"))
	assert.Same(t, child, s.Child("child"))
	assert.False(t, s.IsTerminal())
	assert.True(t, child.IsTerminal())
	assert.Nil(t, s.Transition("missing"))
	assert.Nil(t, s.Operation("missing"))
	assert.Nil(t, s.Trigger(EventInitialization))
}

func TestState_EqualAndHash(t *testing.T) {
	left := buildRing(t, "a")
	right := buildRing(t, "a")
	other := buildRing(t, "root")

	assert.True(t, left.Equal(right), "structurally equal cyclic graphs")
	assert.Equal(t, left.Hash(), right.Hash())
	assert.False(t, left.Equal(other))
	assert.True(t, left.Equal(left))
	assert.False(t, left.Equal(nil))
}

func TestWalk_VisitsEachStateOnce(t *testing.T) {
	root := buildRing(t, "a")

	var paths []string
	Walk(root, func(path []*State) bool {
		paths = append(paths, PathString(path))
		return true
	})
	assert.Equal(t, []string{"root", "root/a", "root/a/b"}, paths)

	var pruned []string
	Walk(root, func(path []*State) bool {
		pruned = append(pruned, PathString(path))
		return len(path) < 2
	})
	assert.Equal(t, []string{"root", "root/a"}, pruned)

	Walk(nil, func([]*State) bool {
		t.Fatal("nil root must not be visited")
		return false
	})
}

func TestGraphBuilder_Errors(t *testing.T) {
	t.Run("Empty Name", func(t *testing.T) {
		_, err := NewGraphBuilder().Declare("")
		assert.ErrorIs(t, err, ErrNullArgument)
	})

	t.Run("Undefined State", func(t *testing.T) {
		b := NewGraphBuilder()
		root, _ := b.Declare("root")
		child, _ := b.Declare("child")
		require.NoError(t, b.Define(root, StateDef{Children: []StateRef{child}}))
		_, err := b.Build(root)
		assert.ErrorIs(t, err, ErrMalformedGraph)
	})

	t.Run("Defined Twice", func(t *testing.T) {
		b := NewGraphBuilder()
		root, _ := b.Declare("root")
		require.NoError(t, b.Define(root, StateDef{}))
		assert.ErrorIs(t, b.Define(root, StateDef{}), ErrMalformedGraph)
	})

	t.Run("Unknown Ref", func(t *testing.T) {
		b := NewGraphBuilder()
		root, _ := b.Declare("root")
		assert.ErrorIs(t, b.Define(root, StateDef{Children: []StateRef{7}}), ErrMalformedGraph)
		assert.ErrorIs(t, b.Define(StateRef(9), StateDef{}), ErrMalformedGraph)
		assert.Empty(t, b.Name(StateRef(9)))
		assert.Equal(t, "root", b.Name(root))
	})

	t.Run("Single Use", func(t *testing.T) {
		b := NewGraphBuilder()
		root, _ := b.Declare("root")
		require.NoError(t, b.Define(root, StateDef{}))
		_, err := b.Build(root)
		require.NoError(t, err)
		_, err = b.Build(root)
		assert.ErrorIs(t, err, ErrMalformedGraph)
	})
}
