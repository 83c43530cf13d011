package filters

import (
	"testing"
	"time"

	"nieuwsdraad/internal/processors/names"
	"nieuwsdraad/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t time.Time) *time.Time { return &t }

func TestQueryFilter(t *testing.T) {
	items := []types.Item{
		{ID: "1", Title: "Storm raakt kustregio"},
		{ID: "2", Title: "Verkiezingen", Summary: "Ook de STORM speelt mee"},
		{ID: "3", Title: "Voetbal"},
	}

	var reasons []string
	out := Apply(items, func(_ types.Item, err error) {
		reasons = append(reasons, err.(*types.DiscardError).Reason)
	}, QueryFilter("storm"))

	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)
	assert.Equal(t, []string{names.ReasonNoMatch}, reasons)

	assert.Nil(t, QueryFilter("  "))
	assert.Len(t, Apply(items, nil, QueryFilter("")), 3)
}

func TestWindowFilter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	items := []types.Item{
		{ID: "recent", PublishedAt: at(now.Add(-time.Hour))},
		{ID: "edge", PublishedAt: at(now.Add(-4 * time.Hour))},
		{ID: "old", PublishedAt: at(now.Add(-5 * time.Hour))},
		{ID: "undated"},
	}

	out := Apply(items, nil, WindowFilter(4*time.Hour, now))
	require.Len(t, out, 2)
	assert.Equal(t, "recent", out[0].ID)
	assert.Equal(t, "edge", out[1].ID)

	assert.Nil(t, WindowFilter(0, now))
	assert.Len(t, Apply(items, nil, WindowFilter(0, now)), 4)
}

func TestInWindow(t *testing.T) {
	now := time.Now()
	assert.True(t, InWindow(nil, 0, now))
	assert.False(t, InWindow(nil, time.Hour, now))
	assert.True(t, InWindow(at(now.Add(-time.Minute)), time.Hour, now))
	assert.False(t, InWindow(at(now.Add(-2*time.Hour)), time.Hour, now))
}
