package uploads

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/stagehandhq/stagehand/internal/media"
)

// StoragePath builds the object key for one asset slot:
//
//	{root}/{profileID}/{kind}/{assetID}-{unixMillis}{ext}
//
// The embedded timestamp makes re-uploads of the same slot land on distinct
// keys, so the superseded object can be deleted without racing the new one.
func StoragePath(root, profileID string, kind media.Kind, assetID string, originalName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(originalName))
	name := fmt.Sprintf("%s-%d%s", assetID, now.UnixMilli(), ext)
	return path.Join(root, profileID, string(kind), name)
}

// PathTimestamp extracts the upload time embedded in a storage path built by
// StoragePath. It returns the zero time when the path does not carry one,
// which callers treat as "age unknown".
func PathTimestamp(storagePath string) time.Time {
	base := path.Base(storagePath)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
