package dispatch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_FIFOBound(t *testing.T) {
	c := NewCache(100)
	for i := 0; i < 101; i++ {
		c.Put(fmt.Sprintf("k%d", i), domain.ParseResult{LineCount: i})
	}

	assert.Equal(t, 100, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok, "first inserted key is evicted")
	res, ok := c.Get("k100")
	require.True(t, ok)
	assert.Equal(t, 100, res.LineCount)
}

func TestCache_IsNotLRU(t *testing.T) {
	c := NewCache(2)
	c.Put("a", domain.ParseResult{})
	c.Put("b", domain.ParseResult{})

	_, _ = c.Get("a") // a read does not refresh a
	c.Put("a", domain.ParseResult{LineCount: 7})
	c.Put("c", domain.ParseResult{})

	_, ok := c.Get("a")
	assert.False(t, ok, "a keeps its original insertion slot")
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(1)
	c.Put("k", domain.ParseResult{Actors: []domain.ActorDecl{{Name: "A"}}})

	got, _ := c.Get("k")
	got.Actors[0].Name = "mutated"

	again, _ := c.Get("k")
	assert.Equal(t, "A", again.Actors[0].Name)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCacheKey(t *testing.T) {
	// Reference values of the 32-bit rolling hash (h = h*31 + unit).
	assert.Equal(t, "0", CacheKey(""))
	assert.Equal(t, "97", CacheKey("a"))
	assert.Equal(t, "3105", CacheKey("ab"))
	assert.Equal(t, "99162322", CacheKey("hello"))

	// Wraps to a signed 32-bit value.
	assert.Equal(t, "-1399154890", CacheKey("actor User"))

	// Astral characters count as two UTF-16 units.
	assert.Equal(t, "1772899", CacheKey("\U0001F600"))

	prefix := strings.Repeat("x", CacheKeyPrefix)
	assert.Equal(t, CacheKey(prefix+"tail one"), CacheKey(prefix+"tail two"), "texts sharing the prefix collide")
	assert.NotEqual(t, CacheKey("actor A"), CacheKey("actor B"))
}
