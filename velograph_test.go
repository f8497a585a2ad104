package velograph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
)

func TestOp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   velograph.Op
		is   velograph.Op
		want bool
	}{
		{op: velograph.OpCreate, is: velograph.OpCreate, want: true},
		{op: velograph.OpCreate, is: velograph.OpUpdate},
		{op: velograph.OpLink | velograph.OpUnlink, is: velograph.OpUnlink, want: true},
		{op: velograph.OpDelete, is: velograph.OpCreate | velograph.OpDelete, want: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.Is(tt.is), "%s.Is(%s)", tt.op, tt.is)
	}
	assert.Equal(t, "OpLink", velograph.OpLink.String())
	assert.Equal(t, "Op(3)", (velograph.OpCreate | velograph.OpUpdate).String())
}

func TestProps(t *testing.T) {
	t.Parallel()

	p := velograph.Props{velograph.GUIDKey: "t1", "title": "Buy milk"}
	assert.Equal(t, "t1", p.GUID())
	c := p.Clone()
	c["title"] = "Buy beer"
	assert.Equal(t, "Buy milk", p["title"])
	assert.Nil(t, velograph.Props(nil).Clone())
	assert.Empty(t, velograph.Props{velograph.GUIDKey: 1}.GUID())
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	k := velograph.CacheKey{Label: "Task", GUID: "t1"}
	assert.Equal(t, "Task:t1", k.String())
	assert.Equal(t, "Task:", k.Prefix())
}

func TestEncodeProps(t *testing.T) {
	t.Parallel()

	b, err := velograph.EncodeProps(velograph.Props{
		"guid":  "t1",
		"rank":  3,
		"score": 0.5,
		"tags":  []any{"home", "shop"},
		"done":  false,
	})
	require.NoError(t, err)
	got, err := velograph.DecodeProps(b)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.GUID())
	assert.EqualValues(t, 3, got["rank"])
	assert.Equal(t, 0.5, got["score"])
	assert.Equal(t, []any{"home", "shop"}, got["tags"])
	assert.Equal(t, false, got["done"])

	_, err = velograph.DecodeProps([]byte{0xc1})
	assert.Error(t, err)
}
