package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileIDString(t *testing.T) {
	assert.Equal(t, "yandex:app:/docs/a.txt", YandexPath("app:/docs/a.txt").String())
	assert.Equal(t, "google:1a2b3c", GoogleID("1a2b3c").String())

	// Same value under different providers never collides.
	assert.NotEqual(t, YandexPath("x").String(), GoogleID("x").String())
}

func TestFileIDIsZero(t *testing.T) {
	assert.True(t, FileID{}.IsZero())
	assert.True(t, FileID{Provider: ProviderYandex}.IsZero())
	assert.False(t, YandexPath("app:/").IsZero())
}

func TestIsSupportedMimeType(t *testing.T) {
	assert.True(t, IsSupportedMimeType("text/plain"))
	assert.True(t, IsSupportedMimeType("text/markdown"))
	assert.False(t, IsSupportedMimeType("image/png"))
	assert.False(t, IsSupportedMimeType("application/pdf"))
	assert.False(t, IsSupportedMimeType(""))
}

func TestTokenValid(t *testing.T) {
	assert.True(t, (&Token{AccessToken: "x", Provider: ProviderYandex}).Valid())
	assert.False(t, (&Token{Provider: ProviderYandex}).Valid())

	var nilToken *Token
	assert.False(t, nilToken.Valid())
}

func TestFileNodeIsDir(t *testing.T) {
	dir := FileNode{Kind: KindDir}
	file := FileNode{Kind: KindFile}
	assert.True(t, dir.IsDir())
	assert.False(t, file.IsDir())
}
