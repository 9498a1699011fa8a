package provider

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

func newTestRemote(t *testing.T, h http.Handler) *Remote {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	r := NewRemote(RemoteOptions{BaseURL: srv.URL + "/tdxfin", Timeout: 5 * time.Second}, logging.NewSilent())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestParseFileList(t *testing.T) {
	files, err := ParseFileList("gpcw20240331.zip,abc123,1024\n\n gpcw20231231.zip , def , 2048 \ngpcw20230930.zip\n")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, model.RemoteFile{Filename: "gpcw20240331.zip", Hash: "abc123", Size: 1024}, files[0])
	assert.Equal(t, model.RemoteFile{Filename: "gpcw20231231.zip", Hash: "def", Size: 2048}, files[1])
	assert.Equal(t, "gpcw20230930.zip", files[2].Filename)

	_, err = ParseFileList("gpcw20240331.zip,abc,big\n")
	assert.ErrorContains(t, err, "line 1")
}

func TestRemoteListRemoteFiles(t *testing.T) {
	r := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/tdxfin/gpcw.txt", req.URL.Path)
		w.Write([]byte("gpcw20240331.zip,h1,10\ngpcw20231231.zip,h2,20\n"))
	}))

	files, err := r.ListRemoteFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "gpcw20231231.zip", files[1].Filename)
}

func TestRemoteListFailure(t *testing.T) {
	r := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	_, err := r.ListRemoteFiles(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindRemoteList))
}

func TestRemoteFetchWritesFile(t *testing.T) {
	payload := []byte("PK\x03\x04binary\x00payload")
	r := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/tdxfin/gpcw20240331.zip", req.URL.Path)
		w.Write(payload)
	}))
	dir := t.TempDir()

	require.NoError(t, r.Fetch(context.Background(), dir, "gpcw20240331.zip"))

	got, err := os.ReadFile(filepath.Join(dir, "gpcw20240331.zip"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestRemoteFetchKeepsTrailingWhitespace(t *testing.T) {
	table := buildReportTable(t, 20240331, 2, []testRow{
		{code: "600000", market: 1, values: []float32{1, 2}},
	})
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("gpcw20240331.dat")
	require.NoError(t, err)
	_, err = w.Write(table)
	require.NoError(t, err)
	require.NoError(t, zw.SetComment("tdxfin\n"))
	require.NoError(t, zw.Close())
	payload := buf.Bytes()
	require.Equal(t, byte('\n'), payload[len(payload)-1])

	r := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	}))
	dir := t.TempDir()

	require.NoError(t, r.Fetch(context.Background(), dir, "gpcw20240331.zip"))

	got, err := os.ReadFile(filepath.Join(dir, "gpcw20240331.zip"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	records, err := parseArchive(dir, "gpcw20240331.zip")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "600000", records[0].Code())
}

func TestRemoteFetchStripsDirectories(t *testing.T) {
	r := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/tdxfin/gpcw20240331.zip", req.URL.Path)
		w.Write([]byte("data"))
	}))
	dir := t.TempDir()

	require.NoError(t, r.Fetch(context.Background(), dir, "../../gpcw20240331.zip"))
	assert.FileExists(t, filepath.Join(dir, "gpcw20240331.zip"))
}

func TestRemoteFetchFailureLeavesNoFile(t *testing.T) {
	r := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	dir := t.TempDir()

	err := r.Fetch(context.Background(), dir, "gpcw20240331.zip")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindFetch))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("gpcw20240331.zip,h,1\n"))
	}))
	defer srv.Close()

	r := NewRemote(RemoteOptions{BaseURL: srv.URL, Retries: 3, Timeout: 5 * time.Second}, logging.NewSilent())
	defer r.Close()

	files, err := r.ListRemoteFiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, int32(3), calls.Load())
}
