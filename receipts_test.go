// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 J. Blake / mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReceiptsSetResolve(t *testing.T) {
	r := NewReceipts()

	var got string
	require.True(t, r.Set("r1", func(id string) { got = id }))
	require.True(t, r.Set("r2", nil))
	require.False(t, r.Set("r2", nil))
	require.Equal(t, 2, r.Len())

	fn, ok := r.Resolve("r1")
	require.True(t, ok)
	fn("r1")
	require.Equal(t, "r1", got)

	// a receipt resolves once only
	_, ok = r.Resolve("r1")
	require.False(t, ok)

	fn, ok = r.Resolve("r2")
	require.True(t, ok)
	require.Nil(t, fn)
	require.Equal(t, 0, r.Len())
}

func TestReceiptsSetKeepsPending(t *testing.T) {
	r := NewReceipts()

	var got []string
	require.True(t, r.Set("r1", func(id string) { got = append(got, "first") }))
	require.False(t, r.Set("r1", func(id string) { got = append(got, "second") }))

	fn, ok := r.Resolve("r1")
	require.True(t, ok)
	fn("r1")
	require.Equal(t, []string{"first"}, got)

	require.True(t, r.Set("r1", nil))
}

func TestReceiptsDelete(t *testing.T) {
	r := NewReceipts()
	r.Set("r1", nil)

	require.True(t, r.Delete("r1"))
	require.False(t, r.Delete("r1"))

	_, ok := r.Resolve("r1")
	require.False(t, ok)
}

func TestReceiptsIDs(t *testing.T) {
	r := NewReceipts()
	r.Set("c", nil)
	r.Set("a", nil)
	r.Set("b", nil)

	require.Equal(t, []string{"a", "b", "c"}, r.IDs())
}

func TestReceiptsClear(t *testing.T) {
	r := NewReceipts()
	called := false
	r.Set("r1", func(id string) { called = true })
	r.Set("r2", nil)

	require.Equal(t, 2, r.Clear())
	require.Equal(t, 0, r.Len())
	require.False(t, called)

	_, ok := r.Resolve("r1")
	require.False(t, ok)
}
