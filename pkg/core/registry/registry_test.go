package registry

import (
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financial_extractor/pkg/models"
)

func numeric(name string) *models.DataSource {
	return models.NewNumericSource(name, models.OriginImported, nil)
}

func names(r *Registry) []string {
	var out []string
	for src := range r.List() {
		out = append(out, src.Name)
	}
	return out
}

func TestAddMakesActive(t *testing.T) {
	r := New()
	_, ok := r.Active()
	assert.False(t, ok)
	assert.Equal(t, "", r.ActiveID())

	a, b := numeric("a"), numeric("b")
	r.Add(a)
	r.Add(b)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, b.ID, r.ActiveID())
	assert.Equal(t, []string{"a", "b"}, names(r))
}

func TestRemoveReassignsToLastRemaining(t *testing.T) {
	r := New()
	a, b, c := numeric("a"), numeric("b"), numeric("c")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	require.True(t, r.Select(a.ID))
	require.True(t, r.Remove(a.ID))
	assert.Equal(t, c.ID, r.ActiveID())

	// removing a non-active source keeps the selection
	require.True(t, r.Remove(b.ID))
	assert.Equal(t, c.ID, r.ActiveID())

	require.True(t, r.Remove(c.ID))
	assert.Equal(t, "", r.ActiveID())
	_, ok := r.Active()
	assert.False(t, ok)

	assert.False(t, r.Remove(c.ID))
}

func TestSelectUnknownIsNoop(t *testing.T) {
	r := New()
	a := numeric("a")
	r.Add(a)

	assert.False(t, r.Select("missing"))
	assert.False(t, r.Select(""))
	assert.Equal(t, a.ID, r.ActiveID())
}

func TestListIsRestartable(t *testing.T) {
	r := New()
	r.Add(numeric("a"))
	r.Add(numeric("b"))
	seq := r.List()

	var first, second []string
	for src := range seq {
		first = append(first, src.Name)
	}
	for src := range seq {
		second = append(second, src.Name)
		break
	}
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, []string{"a"}, second)

	r.Add(numeric("c"))
	var third []string
	for src := range seq {
		third = append(third, src.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, third)
}

func TestReplace(t *testing.T) {
	r := New()
	r.Add(numeric("old"))

	x, y := numeric("x"), numeric("y")
	r.Replace([]*models.DataSource{x, y}, x.ID)
	assert.Equal(t, []string{"x", "y"}, names(r))
	assert.Equal(t, x.ID, r.ActiveID())

	r.Replace([]*models.DataSource{x, y}, "gone")
	assert.Equal(t, y.ID, r.ActiveID())

	r.Replace(nil, x.ID)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "", r.ActiveID())
}

func TestSubscribe(t *testing.T) {
	r := New()
	var events []Event
	r.Subscribe(func(ev Event) {
		// the registry is already consistent when observers run
		if ev.ActiveID != "" {
			_, ok := r.Get(ev.ActiveID)
			assert.True(t, ok)
		}
		events = append(events, ev)
	})

	a, b := numeric("a"), numeric("b")
	r.Add(a)
	r.Add(b)
	r.Select(a.ID)
	r.Remove(a.ID)
	r.Select("missing")

	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventAdded, EventAdded, EventSelected, EventRemoved}, kinds)
	assert.Equal(t, b.ID, events[3].ActiveID)
}

func TestActivePointerNeverDangles(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	r := New()
	var ids []string

	for range 2000 {
		switch op := rng.IntN(3); {
		case op == 0 || len(ids) == 0:
			src := numeric("s")
			r.Add(src)
			ids = append(ids, src.ID)
		case op == 1:
			i := rng.IntN(len(ids))
			r.Remove(ids[i])
			ids = slices.Delete(ids, i, i+1)
		default:
			if rng.IntN(4) == 0 {
				r.Select("unknown")
			} else {
				r.Select(ids[rng.IntN(len(ids))])
			}
		}

		active := r.ActiveID()
		if len(ids) == 0 {
			require.Equal(t, "", active)
			continue
		}
		require.Contains(t, ids, active)
	}
}

func TestConcurrentMutations(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				src := numeric("s")
				r.Add(src)
				r.Select(src.ID)
				for range r.List() {
				}
				r.Remove(src.ID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "", r.ActiveID())
}
