package guestbook_test

import (
	"testing"

	"github.com/sagarc03/guestbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_Matches(t *testing.T) {
	tests := []struct {
		filename string
		images   bool
		audio    bool
		video    bool
	}{
		{"cat.jpg", true, false, false},
		{"cat.jpeg", true, false, false},
		{"cat.png", true, false, false},
		{"cat.gif", true, false, false},
		{"photo.JPG", false, false, false},
		{"song.mp3", false, true, false},
		{"sound.wav", false, true, false},
		{"sound.aif", false, true, false},
		{"sound.au", false, true, false},
		{"movie.asf", false, false, true},
		{"movie.mpeg", false, false, true},
		{"movie.wmv", false, false, true},
		{"movie.MPG", false, false, true},
		{"movie.mpg", false, false, false},
		{"notes.txt", false, false, false},
		{"", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.images, guestbook.CategoryImages.Matches(tt.filename), "images")
			assert.Equal(t, tt.audio, guestbook.CategoryAudio.Matches(tt.filename), "audio")
			assert.Equal(t, tt.video, guestbook.CategoryVideo.Matches(tt.filename), "video")
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := guestbook.ParseCategory("audio")
	require.NoError(t, err)
	assert.Equal(t, guestbook.CategoryAudio, c)

	_, err = guestbook.ParseCategory("Audio")
	assert.ErrorIs(t, err, guestbook.ErrInvalidInput)
}

func TestCategory_SuffixesIsCopy(t *testing.T) {
	s := guestbook.CategoryImages.Suffixes()
	s[0] = ".txt"
	assert.False(t, guestbook.CategoryImages.Matches("a.txt"))
}

func TestFilterFiles(t *testing.T) {
	files := []guestbook.File{
		{Blob: guestbook.BlobInfo{Filename: "b.png"}},
		{Blob: guestbook.BlobInfo{Filename: "a.mp3"}},
		{Blob: guestbook.BlobInfo{Filename: "a.gif"}},
	}

	got := guestbook.FilterFiles(files, guestbook.CategoryImages)
	assert.Len(t, got, 2)
	assert.Equal(t, "b.png", got[0].Blob.Filename)
	assert.Equal(t, "a.gif", got[1].Blob.Filename)

	assert.Empty(t, guestbook.FilterFiles(nil, guestbook.CategoryVideo))
}

func TestBlobPath(t *testing.T) {
	assert.Equal(t, "blobs/ab/abcdef", guestbook.BlobPath("abcdef"))
	assert.Equal(t, "blobs/a", guestbook.BlobPath("a"))
}
