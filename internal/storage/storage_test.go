package storage

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressReaderReportsRunningTotal(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1000)
	var last int64
	pr := &progressReader{
		r:        bytes.NewReader(data),
		progress: func(n int64) { last = n },
	}

	out, err := io.ReadAll(pr)
	assert.NoError(t, err)
	assert.Len(t, out, 1000)
	assert.Equal(t, int64(1000), last)
}

func TestProgressReaderNilCallback(t *testing.T) {
	pr := &progressReader{r: bytes.NewReader([]byte("abc"))}
	out, err := io.ReadAll(pr)
	assert.NoError(t, err)
	assert.Equal(t, "abc", string(out))
}

func TestContentTypeForExt(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentTypeForExt(".mp3"))
	assert.Equal(t, "image/jpeg", ContentTypeForExt(".JPEG"))
	assert.Equal(t, "video/mp4", ContentTypeForExt(".mp4"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExt(".xyz"))
}
