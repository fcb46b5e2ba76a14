package sdktools

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewVersionedDir(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name string
		ok   bool
	}{
		{name: "10.0.22621.0", ok: true},
		{name: "010.0.1.0", ok: true},
		{name: "10.0", ok: false},
		{name: "10.0.1.2.3", ok: false},
		{name: "10.x.1.0", ok: false},
		{name: "10.0.99999999999999999999.0", ok: false},
	}

	for _, tt := range tests {
		d, ok := newVersionedDir("bin", tt.name)
		require.Equal(t, tt.ok, ok, tt.name)
		if ok {
			require.Equal(t, filepath.Join("bin", tt.name), d.path)
			require.NotNil(t, d.version)
		}
	}
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in       []string
		expected []string
	}{
		{
			in:       []string{"10.0.19041.0", "10.0.22621.0", "10.0.9999.0"},
			expected: []string{"10.0.22621.0", "10.0.19041.0", "10.0.9999.0"},
		},
		{
			in:       []string{"9.99.99.99", "10.0.0.0"},
			expected: []string{"10.0.0.0", "9.99.99.99"},
		},
		{
			// equal versions fall back to descending name
			in:       []string{"010.0.1.0", "10.0.1.0", "9.0.0.0", "10.00.1.0"},
			expected: []string{"10.00.1.0", "10.0.1.0", "010.0.1.0", "9.0.0.0"},
		},
	}

	for _, tt := range tests {
		var dirs []versionedDir
		for _, n := range tt.in {
			d, ok := newVersionedDir("bin", n)
			require.True(t, ok, n)
			dirs = append(dirs, d)
		}

		sortNewestFirst(dirs)

		var names []string
		for _, d := range dirs {
			names = append(names, d.name)
		}
		require.Equal(t, tt.expected, names)
	}
}

func TestFindSkipsOverflowingVersion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "bin", "10.0.99999999999999999999.0", "x64", MakeAppx))
	touch(t, filepath.Join(root, "bin", "10.0.19041.0", "x64", MakeAppx))

	found, ok := New(WithRoot(root), WithKnownFolders(noFolders)).Find(MakeAppx, "x64")
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "bin", "10.0.19041.0", "x64", MakeAppx), found)

	only := t.TempDir()
	touch(t, filepath.Join(only, "bin", "10.0.99999999999999999999.0", "x64", MakeAppx))

	_, ok = New(WithRoot(only), WithKnownFolders(noFolders)).Find(MakeAppx, "x64")
	require.False(t, ok)
}
