package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"social-publisher/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPreflight_ExtensionHeuristicWithoutExtraCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := NewPreflight(srv.Client(), time.Second).Check(context.Background(), srv.URL+"/media/clip.mp4")

	require.True(t, res.OK, res.Detail)
	assert.Equal(t, "video/mp4", res.ContentType)
	assert.Equal(t, typeFromExtension, res.TypeSource)
	assert.Equal(t, probeHead, res.Probe)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestPreflight_HeaderTypeWinsAndFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cdn/photo.png", http.StatusFound)
	})
	mux.HandleFunc("/cdn/photo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		w.Header().Set("Content-Length", "2048")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := NewPreflight(srv.Client(), time.Second).Check(context.Background(), srv.URL+"/short")

	require.True(t, res.OK)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, typeFromHeader, res.TypeSource)
	assert.Equal(t, srv.URL+"/cdn/photo.png", res.FinalURL)
	assert.Equal(t, srv.URL+"/short", res.SourceURL)
	assert.EqualValues(t, 2048, res.ContentLength)
}

func TestPreflight_RangeProbeForOctetStream(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Range", "bytes 0-0/5000")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte{0x89})
	}))
	defer srv.Close()

	res := NewPreflight(srv.Client(), time.Second).Check(context.Background(), srv.URL+"/download?id=7")

	require.True(t, res.OK)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, typeFromRange, res.TypeSource)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPreflight_HeadNetworkFailureFallsBackToRangedGet(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodHead {
			return nil, errors.New("connection reset by peer")
		}
		assert.Equal(t, "bytes=0-4095", r.Header.Get("Range"))
		rec := httptest.NewRecorder()
		rec.Header().Set("Content-Type", "video/quicktime")
		rec.Header().Set("Content-Range", "bytes 0-4095/900000")
		rec.WriteHeader(http.StatusPartialContent)
		resp := rec.Result()
		resp.Request = r
		return resp, nil
	})}

	res := NewPreflight(client, time.Second).Check(context.Background(), "https://media.example.com/v")

	require.True(t, res.OK, res.Detail)
	assert.Equal(t, probeGetRange, res.Probe)
	assert.Equal(t, "video/quicktime", res.ContentType)
	assert.EqualValues(t, 900000, res.ContentLength)
}

func TestPreflight_Failures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "binary/octet-stream")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	p := NewPreflight(srv.Client(), time.Second)
	ctx := context.Background()

	res := p.Check(ctx, srv.URL+"/missing.jpg")
	assert.False(t, res.OK)
	assert.Equal(t, model.PreflightBadStatus, res.Failure)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = p.Check(ctx, srv.URL+"/page")
	assert.Equal(t, model.PreflightUnsupportedType, res.Failure)
	assert.Equal(t, "text/html", res.ContentType)

	res = p.Check(ctx, srv.URL+"/blob")
	assert.Equal(t, model.PreflightUnknownType, res.Failure)

	res = p.Check(ctx, "ftp://example.com/a.jpg")
	assert.Equal(t, model.PreflightInvalidURL, res.Failure)

	res = NewPreflight(&http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: no such host")
	})}, time.Second).Check(ctx, "https://nowhere.invalid/a.jpg")
	assert.Equal(t, model.PreflightUnreachable, res.Failure)
	assert.Equal(t, probeGetRange, res.Probe)
}

func TestPreflight_Deterministic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	p := NewPreflight(srv.Client(), time.Second)

	first := p.Check(context.Background(), srv.URL+"/a.webp")
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, p.Check(context.Background(), srv.URL+"/a.webp"))
	}
	assert.Equal(t, "image/webp", first.ContentType)
}
