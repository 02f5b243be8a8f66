package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/thermotrack/pkg/types"
)

func TestStoreKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Add(types.ControlPoint{Time: 10, Temperature: 15})
	s.Add(types.ControlPoint{Time: 0, Temperature: 10})
	s.Add(types.ControlPoint{Time: 5, Temperature: 20})

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, []float64{10, 0, 5}, []float64{all[0].Time, all[1].Time, all[2].Time})
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})
}

func TestStoreAcceptsAnyValues(t *testing.T) {
	s := NewStore()
	s.Add(types.ControlPoint{Time: -3, Temperature: -40})
	s.Add(types.ControlPoint{Time: -3, Temperature: 12})

	assert.Equal(t, 2, s.Len())
}

func TestStoreRemove(t *testing.T) {
	s := NewStore()
	a := s.Add(types.ControlPoint{Time: 0, Temperature: 10})
	b := s.Add(types.ControlPoint{Time: 1, Temperature: 20})

	assert.True(t, s.Remove(a.ID))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestStoreRemoveUnknownIsNoop(t *testing.T) {
	s := NewStore()
	s.Add(types.ControlPoint{Time: 0, Temperature: 10})
	before := s.All()

	calls := 0
	cancel := s.Subscribe(func([]types.Reading) { calls++ })
	defer cancel()

	assert.False(t, s.Remove(999))
	assert.Equal(t, before, s.All())
	assert.Zero(t, calls)
}

func TestStoreIDsNotReusedAfterRemove(t *testing.T) {
	s := NewStore()
	a := s.Add(types.ControlPoint{Time: 0, Temperature: 10})
	s.Remove(a.ID)
	b := s.Add(types.ControlPoint{Time: 0, Temperature: 10})

	assert.NotEqual(t, a.ID, b.ID)
}

func TestStorePutAdvancesIDs(t *testing.T) {
	s := NewStore()
	s.Put(types.Reading{ID: 41, Time: 2, Temperature: 18})
	r := s.Add(types.ControlPoint{Time: 3, Temperature: 19})

	assert.Equal(t, int64(42), r.ID)
	assert.Equal(t, []types.ControlPoint{{Time: 2, Temperature: 18}, {Time: 3, Temperature: 19}}, s.Points())
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	s := NewStore()

	var seen [][]types.Reading
	cancel := s.Subscribe(func(r []types.Reading) { seen = append(seen, r) })

	a := s.Add(types.ControlPoint{Time: 0, Temperature: 10})
	s.Remove(a.ID)
	cancel()
	s.Add(types.ControlPoint{Time: 1, Temperature: 11})

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 1)
	assert.Empty(t, seen[1])
}

func TestStoreAllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Add(types.ControlPoint{Time: 0, Temperature: 10})

	all := s.All()
	all[0].Temperature = 99

	assert.Equal(t, 10.0, s.All()[0].Temperature)
}
