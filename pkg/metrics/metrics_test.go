package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFilesystemMetricsWith(reg).(*filesystemMetrics)

	m.RecordOperation("Create", time.Millisecond, nil)
	m.RecordOperation("Create", time.Millisecond, errors.New("boom"))
	m.RecordOperation("Read", time.Millisecond, nil)
	m.RecordBytes("write", 128)
	m.RecordBytes("write", 0)
	m.SetInodes(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("Create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("Create", "error")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.bytesTotal.WithLabelValues("write")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.inodes))
	assert.Equal(t, 2, testutil.CollectAndCount(m.operationDuration))
}

func TestNoopFilesystemMetrics(t *testing.T) {
	m := NewNoopFilesystemMetrics()
	assert.NotPanics(t, func() {
		m.RecordOperation("Create", time.Second, nil)
		m.RecordBytes("read", 10)
		m.SetInodes(1)
	})
}

func TestServerServesMetrics(t *testing.T) {
	InitRegistry()
	require.True(t, IsEnabled())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ServerConfig{Port: ln.Addr().(*net.TCPAddr).Port})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
