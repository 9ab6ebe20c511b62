package core

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathCompare(t *testing.T) {
	assert.Equal(t, 0, Path{1, 2}.Compare(Path{1, 2}))
	assert.Equal(t, -1, Path{0}.Compare(Path{0, 0}), "主指令排在自己的 inner 指令之前")
	assert.Equal(t, 1, Path{1}.Compare(Path{0, 5}))
	assert.Equal(t, -1, Path{0, 9}.Compare(Path{1}))
	assert.Equal(t, 1, Path{2, 10}.Compare(Path{2, 9}))
	assert.True(t, Path{3}.Less(Path{3, 0}))
	assert.False(t, Path{3}.Less(Path{3}))
}

func TestPathSortOrder(t *testing.T) {
	paths := []Path{{2}, {0, 1}, {1}, {0}, {2, 0}, {0, 0}, {10}}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Less(paths[j]) })

	got := make([]string, len(paths))
	for i, p := range paths {
		got[i] = p.String()
	}
	assert.Equal(t, []string{"0", "0.0", "0.1", "1", "2", "2.0", "10"}, got)
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("3.65535")
	require.NoError(t, err)
	assert.Equal(t, Path{3, 65535}, p)
	assert.Equal(t, "3.65535", p.String())

	for _, bad := range []string{"", "1.", "a", "1.65536", "-1"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "", Path(nil).String())
}
