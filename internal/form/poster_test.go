package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestValidatePosterURL(t *testing.T) {
	valid := []string{
		"https://example.org/poster.jpg",
		"http://example.org/a/b/poster.JPEG",
		"https://example.org/poster.webp?size=large",
		"https://example.org/poster.gif",
		"https://example.org/poster.png",
	}
	for _, u := range valid {
		assert.Empty(t, ValidatePoster(u), u)
	}
	invalid := []string{
		"https://example.org/poster.bmp",
		"ftp://example.org/poster.png",
		"poster.png",
		"https://example.org/poster.png.exe",
	}
	for _, u := range invalid {
		assert.NotEmpty(t, ValidatePoster(u), u)
	}
}

func TestValidatePosterUpload(t *testing.T) {
	assert.Empty(t, ValidatePoster(&Upload{Filename: "poster.png", Content: pngHeader}))
	assert.Contains(t, ValidatePoster(&Upload{Filename: "notes.txt", Content: []byte("just some text")}), "JPEG, PNG")

	big := make([]byte, MaxPosterSize+1)
	copy(big, pngHeader)
	assert.Contains(t, ValidatePoster(&Upload{Filename: "big.png", Content: big}), "larger")
}

func TestValidatePosterRejectsOtherShapes(t *testing.T) {
	assert.Equal(t, "Poster is required", ValidatePoster(nil))
	assert.Equal(t, "Poster is required", ValidatePoster(""))
	assert.Equal(t, "Poster is required", ValidatePoster(42))
	assert.Equal(t, "Poster is required", ValidatePoster(&Upload{}))
	var u *Upload
	assert.Equal(t, "Poster is required", ValidatePoster(u))
}
