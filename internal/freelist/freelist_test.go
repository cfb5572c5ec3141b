package freelist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardwell/chashtable/internal/bucket"
)

func TestEmptyPoolReturnsNil(t *testing.T) {
	p := New[int, string]()
	require.Nil(t, p.Get())
	require.Equal(t, 0, p.Len())
}

func TestPutThenGetRecyclesSameNode(t *testing.T) {
	p := New[int, string]()
	g := &bucket.Group[int, string]{}
	g.TryPlace(bucket.Tag(1), bucket.Entry[int, string]{Key: 1, Value: "a"})

	p.Put(g)
	require.Equal(t, 1, p.Len())

	recycled := p.Get()
	require.Same(t, g, recycled)
	require.Equal(t, 0, recycled.Count(), "Put must reset the group before recycling")
	require.Equal(t, 0, p.Len())
}

func TestPoolIsLIFO(t *testing.T) {
	p := New[int, string]()
	a := &bucket.Group[int, string]{}
	b := &bucket.Group[int, string]{}
	p.Put(a)
	p.Put(b)

	require.Same(t, b, p.Get())
	require.Same(t, a, p.Get())
	require.Nil(t, p.Get())
}
