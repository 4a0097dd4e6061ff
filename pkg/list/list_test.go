package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndPeek(t *testing.T) {
	l := New[int]()
	require.Nil(t, l.PeekHead())
	require.Nil(t, l.PeekTail())

	l.PushTail(1)
	l.PushTail(2)
	l.PushHead(0)

	assert.Equal(t, 3, l.Size())
	assert.Equal(t, 0, l.PeekHead().GetValue())
	assert.Equal(t, 2, l.PeekTail().GetValue())
	assert.Equal(t, 1, l.PeekHead().GetNext().GetValue())
}

func TestPopSelf(t *testing.T) {
	l := New[string]()
	a := l.PushTail("a")
	b := l.PushTail("b")
	c := l.PushTail("c")

	b.PopSelf()
	assert.Equal(t, 2, l.Size())
	assert.Equal(t, c, a.GetNext())
	assert.Nil(t, b.GetList())

	// Detached links pop without corrupting the list.
	b.PopSelf()
	assert.Equal(t, 2, l.Size())

	a.PopSelf()
	c.PopSelf()
	assert.Equal(t, 0, l.Size())
	assert.Nil(t, l.PeekHead())
	assert.Nil(t, l.PeekTail())
}

func TestFindAndMap(t *testing.T) {
	l := New[int]()
	for i := 0; i < 5; i++ {
		l.PushTail(i)
	}
	link := l.Find(func(link *Link[int]) bool { return link.GetValue() == 3 })
	require.NotNil(t, link)
	assert.Equal(t, 3, link.GetValue())

	assert.Nil(t, l.Find(func(link *Link[int]) bool { return link.GetValue() == 9 }))

	sum := 0
	l.Map(func(link *Link[int]) { sum += link.GetValue() })
	assert.Equal(t, 10, sum)
}
