package deliverer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/internal/domain/model"
)

var fixedNow = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func archiveDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "demo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Classifier_v1_20240101_120000.zip"), []byte("c1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UAT Documentation_v2_20240101_120000.zip"), []byte("u2"), 0o644))
	return dir
}

type captured struct {
	header http.Header
	body   []byte
}

func TestDeliverer_SendsPackage(t *testing.T) {
	var got captured
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		got.header = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tmp := t.TempDir()
	d := New(Options{TempDir: tmp, Now: func() time.Time { return fixedNow }})

	err := d.Send(context.Background(), model.DeliveryRequest{
		Repository:  "demo",
		ArchiveDir:  archiveDir(t),
		Endpoint:    srv.URL,
		ReferenceID: "TICKET-7",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, "application/zip", got.header.Get("Content-Type"))
	assert.Equal(t, "demo", got.header.Get("X-Repository-Name"))
	assert.Equal(t, "TICKET-7", got.header.Get("X-Reference-ID"))
	assert.Equal(t, "2024-03-05T14:30:00Z", got.header.Get("X-Timestamp"))

	zr, err := zip.NewReader(bytes.NewReader(got.body), int64(len(got.body)))
	require.NoError(t, err)
	names := make(map[string]*zip.File)
	for _, f := range zr.File {
		names[f.Name] = f
	}
	require.Contains(t, names, "Classifier_v1_20240101_120000.zip")
	require.Contains(t, names, "UAT Documentation_v2_20240101_120000.zip")
	require.Contains(t, names, model.ManifestFileName)

	rc, err := names[model.ManifestFileName].Open()
	require.NoError(t, err)
	defer rc.Close()
	var manifest model.Manifest
	require.NoError(t, json.NewDecoder(rc).Decode(&manifest))
	assert.Equal(t, "demo", manifest.Repository)
	assert.Equal(t, "20240305_143000", manifest.Timestamp)
	require.NotNil(t, manifest.ReferenceID)
	assert.Equal(t, "TICKET-7", *manifest.ReferenceID)
	assert.Equal(t, []string{"Classifier_v1_20240101_120000.zip", "UAT Documentation_v2_20240101_120000.zip"}, manifest.Contents)

	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "package directory must be removed")
}

func TestDeliverer_Non200FailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tmp := t.TempDir()
	d := New(Options{TempDir: tmp})
	err := d.Send(context.Background(), model.DeliveryRequest{Repository: "demo", ArchiveDir: archiveDir(t), Endpoint: srv.URL})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), calls.Load())

	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDeliverer_NoReferenceOmitsHeader(t *testing.T) {
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(Options{TempDir: t.TempDir()})
	require.NoError(t, d.Send(context.Background(), model.DeliveryRequest{Repository: "demo", ArchiveDir: archiveDir(t), Endpoint: srv.URL}))
	_, present := header["X-Reference-Id"]
	assert.False(t, present)
}

func TestDeliverer_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tmp := t.TempDir()
	d := New(Options{TempDir: tmp, Timeout: 50 * time.Millisecond})
	err := d.Send(context.Background(), model.DeliveryRequest{Repository: "demo", ArchiveDir: archiveDir(t), Endpoint: srv.URL})
	require.Error(t, err)

	leftovers, readErr := os.ReadDir(tmp)
	require.NoError(t, readErr)
	assert.Empty(t, leftovers)
}

func TestDeliverer_EmptyArchiveDir(t *testing.T) {
	d := New(Options{TempDir: t.TempDir()})
	err := d.Send(context.Background(), model.DeliveryRequest{Repository: "demo", ArchiveDir: t.TempDir(), Endpoint: "http://127.0.0.1:1"})
	require.ErrorIs(t, err, ErrNoArchives)
}

func TestDeliverer_RequiresEndpoint(t *testing.T) {
	d := New(Options{})
	require.Error(t, d.Send(context.Background(), model.DeliveryRequest{Repository: "demo", ArchiveDir: t.TempDir()}))
}

func TestBuildManifest_NullReference(t *testing.T) {
	m, err := BuildManifest("demo", archiveDir(t), "", fixedNow)
	require.NoError(t, err)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reference_id":null`)
}
