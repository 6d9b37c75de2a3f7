package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchOrderIsOrderingThenDiscovery(t *testing.T) {
	var ran []string
	targets := []Target{
		{Name: "c", Ordering: DefaultOrdering, Discovery: 2, Handle: func(Kind) error { ran = append(ran, "c"); return nil }},
		{Name: "a", Ordering: 1, Discovery: 0, Handle: func(Kind) error { ran = append(ran, "a"); return nil }},
		{Name: "b-first", Ordering: 5, Discovery: 0, Handle: func(Kind) error { ran = append(ran, "b-first"); return nil }},
		{Name: "b-second", Ordering: 5, Discovery: 1, Handle: func(Kind) error { ran = append(ran, "b-second"); return nil }},
	}

	d := NewDispatcher(targets)
	d.Dispatch(ClientInit)

	require.Equal(t, []string{"a", "b-first", "b-second", "c"}, ran)
}

func TestDispatchContinuesPastFailingPlugin(t *testing.T) {
	var ran []string
	targets := []Target{
		{Name: "fails", Ordering: 0, Handle: func(Kind) error { ran = append(ran, "fails"); return errors.New("boom") }},
		{Name: "next", Ordering: 1, Handle: func(Kind) error { ran = append(ran, "next"); return nil }},
	}

	d := NewDispatcher(targets)
	results := d.Dispatch(MenuInit)

	require.Equal(t, []string{"fails", "next"}, ran)
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
}
