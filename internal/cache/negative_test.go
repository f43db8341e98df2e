package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNegative_MarkAndExpire(t *testing.T) {
	n := NewNegative(20 * time.Millisecond)
	n.MarkAbsent("gone")
	assert.True(t, n.IsAbsent("gone"))

	time.Sleep(40 * time.Millisecond)
	assert.False(t, n.IsAbsent("gone"))
}

func TestNegative_Forget(t *testing.T) {
	n := NewNegative(time.Minute)
	n.MarkAbsent("code")
	n.Forget("code")
	assert.False(t, n.IsAbsent("code"))
}

func TestNegative_Purge(t *testing.T) {
	n := NewNegative(10 * time.Millisecond)
	n.MarkAbsent("a")
	n.MarkAbsent("b")
	time.Sleep(30 * time.Millisecond)
	n.Purge()
	assert.Equal(t, 0, n.Len())
}
