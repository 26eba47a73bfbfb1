// Package quota computes a profile's media storage usage against its byte
// ceiling. The limit is advisory: the accountant reports usage and an
// over-limit flag for display but never blocks an upload.
package quota

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stagehandhq/stagehand/internal/media"
)

// Report is the user-facing usage summary.
type Report struct {
	UsedBytes  int64 `json:"usedBytes"`
	LimitBytes int64 `json:"limitBytes"`
	OverLimit  bool  `json:"overLimit"`
}

// Accountant sums asset sizes for one profile session. Legacy assets
// persisted before sizes were recorded have a remote URL but no byte count;
// for those the accountant issues one HEAD probe per asset id and caches
// the outcome, successful or not, for the life of the session.
type Accountant struct {
	log     *slog.Logger
	client  *http.Client
	limit   int64
	timeout time.Duration

	mu     sync.Mutex
	probed map[string]int64
}

// NewAccountant builds an accountant with the given byte ceiling. client may
// be nil, in which case a default client with the probe timeout is used.
func NewAccountant(log *slog.Logger, limitBytes int64, probeTimeout time.Duration, client *http.Client) *Accountant {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	return &Accountant{
		log:     log.With(slog.String("service", "quota")),
		client:  client,
		limit:   limitBytes,
		timeout: probeTimeout,
		probed:  make(map[string]int64),
	}
}

// Usage sums totalSizeBytes across every track and video, probing remote
// sizes for assets that never had one recorded.
func (a *Accountant) Usage(ctx context.Context, tracks []media.Track, videos []media.Video) int64 {
	var total int64
	for _, t := range tracks {
		size := t.TotalSizeBytes()
		if size == 0 && t.Audio.HasRemote() {
			size = a.probe(ctx, t.ID, t.Audio.RemoteURL)
		}
		total += size
	}
	for _, v := range videos {
		size := v.TotalSizeBytes()
		if size == 0 && v.File.HasRemote() {
			size = a.probe(ctx, v.ID, v.File.RemoteURL)
		}
		total += size
	}
	return total
}

// ReportUsage wraps Usage with the limit comparison.
func (a *Accountant) ReportUsage(ctx context.Context, tracks []media.Track, videos []media.Video) Report {
	used := a.Usage(ctx, tracks, videos)
	return Report{
		UsedBytes:  used,
		LimitBytes: a.limit,
		OverLimit:  used > a.limit,
	}
}

// probe resolves an asset's size via a HEAD request. Each asset id is probed
// at most once per session; failed probes are cached as zero so a flaky URL
// is not hammered on every recomputation.
func (a *Accountant) probe(ctx context.Context, assetID, url string) int64 {
	a.mu.Lock()
	if size, ok := a.probed[assetID]; ok {
		a.mu.Unlock()
		return size
	}
	a.mu.Unlock()

	size := a.headContentLength(ctx, url)
	if size < 0 {
		a.log.Warn("size probe failed", slog.String("asset_id", assetID), slog.String("url", url))
		size = 0
	}

	a.mu.Lock()
	a.probed[assetID] = size
	a.mu.Unlock()
	return size
}

func (a *Accountant) headContentLength(ctx context.Context, url string) int64 {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return -1
	}
	return resp.ContentLength
}
