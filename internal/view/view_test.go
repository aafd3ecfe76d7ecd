package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostwatch/internal/model"
	"hostwatch/internal/registry"
	"hostwatch/internal/store"
)

var fleet = []model.HostRecord{
	{Hostname: "a", IP: "10.0.0.1"},
	{Hostname: "b"},
	{Hostname: "c", IP: "10.0.0.3"},
	{Hostname: "d"},
}

func names(hosts []model.HostRecord) []string {
	out := []string{}
	for _, h := range hosts {
		out = append(out, h.Hostname)
	}
	return out
}

func TestApply(t *testing.T) {
	t.Parallel()

	assert.Equal(t, fleet, Apply(fleet, model.FilterAll))
	assert.Equal(t, []string{"a", "c"}, names(Apply(fleet, model.FilterOnline)))
	assert.Equal(t, []string{"b", "d"}, names(Apply(fleet, model.FilterOffline)))
}

func TestApply_PartitionsWithoutOverlap(t *testing.T) {
	t.Parallel()

	online := Apply(fleet, model.FilterOnline)
	offline := Apply(fleet, model.FilterOffline)
	assert.Len(t, fleet, len(online)+len(offline))

	seen := map[string]bool{}
	for _, h := range append(online, offline...) {
		assert.False(t, seen[h.Hostname], h.Hostname)
		seen[h.Hostname] = true
	}
	for _, h := range online {
		assert.NotEmpty(t, h.IP)
	}
	for _, h := range offline {
		assert.Empty(t, h.IP)
	}
}

func TestApply_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	in := append([]model.HostRecord(nil), fleet...)
	out := Apply(in, model.FilterAll)
	out[0].IP = "changed"
	assert.Equal(t, fleet, in)
	assert.Empty(t, Apply(nil, model.FilterOnline))
}

func TestView_RecomputesOnRegistryAndFilterChange(t *testing.T) {
	t.Parallel()

	reg, err := registry.New(store.NewMemory(), nil)
	require.NoError(t, err)
	require.NoError(t, reg.Add("a"))

	v := New(reg)
	defer v.Close()

	var seen [][]string
	v.Subscribe(func(hosts []model.HostRecord) { seen = append(seen, names(hosts)) })

	require.NoError(t, reg.Add("b"))
	require.NoError(t, reg.UpdateFromStatus("b", model.HostRecord{IP: "10.0.0.2"}))
	v.SetFilter(model.FilterOnline)
	v.SetFilter(model.FilterOnline)
	v.SetFilter(model.FilterOffline)
	require.NoError(t, reg.Remove("a"))

	assert.Equal(t, [][]string{
		{"a", "b"},
		{"a", "b"},
		{"b"},
		{"a"},
		{},
	}, seen)
	assert.Equal(t, model.FilterOffline, v.Filter())
	assert.Empty(t, v.Visible())
}

func TestView_Close(t *testing.T) {
	t.Parallel()

	reg, err := registry.New(store.NewMemory(), nil)
	require.NoError(t, err)
	v := New(reg)
	v.Close()

	require.NoError(t, reg.Add("a"))
	assert.Empty(t, v.Visible())
}
