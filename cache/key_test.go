package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEqualityIgnoresIdentity(t *testing.T) {
	r1 := &student{ID: 42, Name: "alice"}
	r2 := &student{ID: 42, Name: "bob"}

	k1, err := KeyOf(studentKey, r1)
	require.NoError(t, err)
	k2, err := KeyOf(studentKey, r2)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	slots := map[Key]string{k1: "first"}
	slots[k2] = "second"
	assert.Len(t, slots, 1)
	assert.Equal(t, "second", slots[k1])
}

func TestKeyNormalizesIntegers(t *testing.T) {
	assert.Equal(t, MustKey(int64(7)), MustKey(7))
	assert.Equal(t, MustKey(int32(7)), MustKey(uint8(7)))
	assert.NotEqual(t, MustKey(7), MustKey("7"))
	assert.NotEqual(t, MustKey(7), MustKey(7.0))
}

func TestKeyCompositeValues(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	k1 := MustKey("dept", []byte{1, 2}, ts)
	k2 := MustKey("dept", []byte{1, 2}, ts.In(time.FixedZone("x", 3600)))
	assert.Equal(t, k1, k2)

	// the separator must not make different tuples collide
	assert.NotEqual(t, MustKey("a,s:b"), MustKey("a", "b"))
	assert.NotEqual(t, MustKey(1, 2), MustKey(12))
}

func TestKeyRejectsUnsupportedValues(t *testing.T) {
	_, err := NewKey()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrIllegalOperation))

	_, err = NewKey(map[string]int{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrIllegalOperation))
	assert.Contains(t, err.Error(), "unsupported type map[string]int")
}
