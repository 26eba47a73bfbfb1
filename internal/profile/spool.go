package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrAssetTooLarge is returned when an incoming file exceeds the configured
// single-asset limit.
var ErrAssetTooLarge = errors.New("asset exceeds maximum size")

// spoolWithLimit copies an incoming file to a temp file in dir, enforcing
// maxBytes. It returns the spool path and the byte count. The caller owns
// the file and removes it after a successful upload.
func spoolWithLimit(reader io.Reader, dir string, maxBytes int64) (string, int64, error) {
	if reader == nil {
		return "", 0, fmt.Errorf("reader is required")
	}
	if maxBytes <= 0 {
		return "", 0, fmt.Errorf("max bytes must be greater than 0")
	}
	tempFile, err := os.CreateTemp(dir, "stagehand-media-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	keepFile := false
	defer func() {
		_ = tempFile.Close()
		if !keepFile {
			_ = os.Remove(tempPath)
		}
	}()

	limited := &io.LimitedReader{R: reader, N: maxBytes + 1}
	written, err := io.Copy(tempFile, limited)
	if err != nil {
		return "", 0, fmt.Errorf("copy to temp file: %w", err)
	}
	if written > maxBytes {
		return "", 0, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	if written == 0 {
		return "", 0, fmt.Errorf("asset payload is empty")
	}
	keepFile = true
	return tempPath, written, nil
}
