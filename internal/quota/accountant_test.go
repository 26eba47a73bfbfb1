package quota

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stagehandhq/stagehand/internal/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAccountant(limit int64) *Accountant {
	return NewAccountant(testLogger(), limit, time.Second, nil)
}

func TestUsageAdditivity(t *testing.T) {
	ctx := context.Background()
	a := newAccountant(3 << 30)

	tracks := []media.Track{
		{ID: "t1", Audio: media.Slot{SizeBytes: 3 << 20}},
		{ID: "t2", Audio: media.Slot{SizeBytes: 5 << 20}},
	}
	videos := []media.Video{
		{ID: "v1", File: media.Slot{SizeBytes: 100 << 20}, Thumbnail: media.Slot{SizeBytes: 1 << 20}},
	}

	base := a.Usage(ctx, tracks, videos)
	assert.Equal(t, int64(3<<20+5<<20+101<<20), base)

	// Removing one asset decreases usage by exactly its size.
	assert.Equal(t, base-int64(5<<20), a.Usage(ctx, tracks[:1], videos))
}

func TestReportOverLimit(t *testing.T) {
	ctx := context.Background()
	a := newAccountant(10 << 20)

	tracks := []media.Track{{ID: "t1", Audio: media.Slot{SizeBytes: 11 << 20}}}
	rep := a.ReportUsage(ctx, tracks, nil)
	assert.True(t, rep.OverLimit)
	assert.Equal(t, int64(11<<20), rep.UsedBytes)
	assert.Equal(t, int64(10<<20), rep.LimitBytes)
}

func TestLegacyAssetProbedExactlyOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "4096")
	}))
	defer srv.Close()

	ctx := context.Background()
	a := NewAccountant(testLogger(), 3<<30, time.Second, srv.Client())

	legacy := []media.Track{{ID: "t1", Audio: media.Slot{RemoteURL: srv.URL + "/a.mp3"}}}
	assert.Equal(t, int64(4096), a.Usage(ctx, legacy, nil))
	assert.Equal(t, int64(4096), a.Usage(ctx, legacy, nil))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFailedProbeCachedAsZero(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx := context.Background()
	a := NewAccountant(testLogger(), 3<<30, time.Second, srv.Client())

	legacy := []media.Video{{ID: "v1", File: media.Slot{RemoteURL: srv.URL + "/v.mp4"}}}
	assert.Equal(t, int64(0), a.Usage(ctx, nil, legacy))
	assert.Equal(t, int64(0), a.Usage(ctx, nil, legacy))
	assert.Equal(t, int32(1), hits.Load())
}

func TestKnownSizeNeverProbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected probe for asset with recorded size")
	}))
	defer srv.Close()

	a := NewAccountant(testLogger(), 3<<30, time.Second, srv.Client())
	tracks := []media.Track{{ID: "t1", Audio: media.Slot{RemoteURL: srv.URL + "/a.mp3", SizeBytes: 128}}}
	assert.Equal(t, int64(128), a.Usage(context.Background(), tracks, nil))
}
