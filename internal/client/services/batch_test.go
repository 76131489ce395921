package services

import (
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goods(guids ...string) []models.Row {
	out := make([]models.Row, 0, len(guids))
	for _, g := range guids {
		out = append(out, models.Good{GUID: g})
	}
	return out
}

func TestGroupByType(t *testing.T) {
	rows := []models.Row{
		models.Good{GUID: "g1"},
		models.Client{GUID: "c1"},
		models.Good{GUID: "g2"},
		models.Watermark{Value: 5},
	}
	order, groups := groupByType(rows)

	want := []models.DataType{models.TypeGoods, models.TypeClients, models.TypeWatermark}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, goods("g1", "g2"), groups[models.TypeGoods])
	assert.Len(t, groups[models.TypeClients], 1)
	assert.Len(t, groups[models.TypeWatermark], 1)
}

func TestBatcher(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]models.Row
		// flushed lists the sizes handed to flush before drain.
		flushed []int
		left    int
	}{
		{
			name:    "small batches stay buffered",
			batches: [][]models.Row{goods("a", "b"), goods("c")},
			left:    3,
		},
		{
			name:    "buffer flushes past threshold",
			batches: [][]models.Row{goods("a", "b", "c"), goods("d", "e")},
			flushed: []int{5},
		},
		{
			name:    "large batch bypasses buffer after draining it",
			batches: [][]models.Row{goods("a"), goods("b", "c", "d", "e", "f", "g")},
			flushed: []int{1, 6},
		},
		{
			name:    "empty batches are ignored",
			batches: [][]models.Row{nil, {}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes []int
			b := &batcher{threshold: 4, direct: 6, flush: func(rows []models.Row) { sizes = append(sizes, len(rows)) }}
			for _, batch := range tt.batches {
				b.add(batch)
			}
			assert.Equal(t, tt.flushed, sizes)
			assert.Len(t, b.buf, tt.left)
		})
	}
}

func TestBatcher_PreservesArrivalOrder(t *testing.T) {
	var got []string
	b := &batcher{threshold: 2, direct: 3, flush: func(rows []models.Row) {
		for _, r := range rows {
			got = append(got, r.(models.Good).GUID)
		}
	}}
	b.add(goods("a"))
	b.add(goods("b", "c", "d"))
	b.add(goods("e", "f"))
	b.add(goods("g"))
	b.drain()

	require.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, got)
	assert.Empty(t, b.buf)
}
