package yandexdisk

import (
	"errors"
	"testing"

	"cloudpad/internal/remote"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "app:/"},
		{"/", "app:/"},
		{"app:/", "app:/"},
		{"app:/notes.txt", "app:/notes.txt"},
		{"app:/a/b/../b/c", "app:/a/b/c"},
		{"/notes/a.txt", "app:/notes/a.txt"},
		{"notes/a.txt", "app:/notes/a.txt"},
		{"disk:/Приложения/Cloudpad/notes/a.txt", "app:/notes/a.txt"},
		{"disk:/Applications/Cloudpad", "app:/"},
		{"app:/a//b/./c", "app:/a/b/c"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, "Normalize(%q)", tc.in)
		require.Equal(t, tc.want, got, "Normalize(%q)", tc.in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"app:/", "app:/a/b/c.txt", "disk:/Приложения/Cloudpad/x", "/plain/path"}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		require.Equal(t, once, twice)
	}
}

func TestNormalizeRejectsEscapes(t *testing.T) {
	inputs := []string{
		"app:/../outside",
		"../outside",
		"app:/a/../../b",
		"disk:/some/other/folder",
		"trash:/deleted.txt",
	}
	for _, in := range inputs {
		_, err := Normalize(in)
		require.ErrorIs(t, err, remote.ErrContainment, "Normalize(%q)", in)
	}
}

func TestJoinParentBase(t *testing.T) {
	require.Equal(t, "app:/a.txt", Join("app:/", "a.txt"))
	require.Equal(t, "app:/docs/a.txt", Join("app:/docs", "a.txt"))

	require.Equal(t, "app:/", Parent("app:/a.txt"))
	require.Equal(t, "app:/docs", Parent("app:/docs/a.txt"))
	require.Equal(t, "app:/", Parent("app:/"))

	require.Equal(t, "a.txt", Base("app:/docs/a.txt"))
	require.Equal(t, "", Base("app:/"))
}

func TestDisplayPath(t *testing.T) {
	require.Equal(t, "/", DisplayPath("app:/"))
	require.Equal(t, "/docs/a.txt", DisplayPath("app:/docs/a.txt"))
}

func TestValidateName(t *testing.T) {
	require.NoError(t, validateName("report.txt"))
	for _, name := range []string{"", ".", "..", "a/b"} {
		err := validateName(name)
		require.Error(t, err, "name %q", name)
		require.True(t, errors.Is(err, remote.ErrContainment))
	}
}
