package comm_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nubilum/nubilum/comm"
	"github.com/nubilum/nubilum/internal/metrics"
	"github.com/nubilum/nubilum/internal/store"
	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

func adminServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	st := store.NewMemory()
	for i, h := range []string{"msg", "alert", "msg"} {
		p := push.New(h, i, jsonv.Int(int64(i)), false, push.WithID(int64(100+i)), fixedClock)
		_, err := st.Append(context.Background(), store.FromPayload(p, "conn", "127.0.0.1:1", time.UnixMilli(5)))
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	metrics.NewWithRegistry(reg).AcksSent.Inc()

	srv := httptest.NewServer(comm.NewAdminRouter(st, zerolog.Nop(), comm.AdminConfig{
		MetricsPath: "/metrics",
		Gatherer:    reg,
	}))
	t.Cleanup(srv.Close)
	return srv, st
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func getJSON(t *testing.T, url string) (int, *jsonv.Value) {
	t.Helper()
	status, body := get(t, url)
	v, err := jsonv.Parse(body, jsonv.Standard)
	require.NoError(t, err, "body %q", body)
	return status, v
}

func TestAdmin_Health(t *testing.T) {
	srv, _ := adminServer(t)

	status, v := getJSON(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"messages": 3, "status": "ok"}`, jsonv.Dump(v))
}

func TestAdmin_ListMessages(t *testing.T) {
	srv, _ := adminServer(t)

	tests := []struct {
		query string
		ids   []int64
	}{
		{"", []int64{100, 101, 102}},
		{"?header=msg", []int64{100, 102}},
		{"?after=1&limit=1", []int64{101}},
		{"?header=none", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			status, v := getJSON(t, srv.URL+"/messages"+tt.query)
			require.Equal(t, http.StatusOK, status)

			var ids []int64
			for _, m := range v.Get("messages").Items() {
				ids = append(ids, int64(m.Get(push.KeyID).AsInt()))
			}
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, len(tt.ids), v.Get("count").AsInt())
		})
	}
}

func TestAdmin_GetMessage(t *testing.T) {
	srv, _ := adminServer(t)

	status, v := getJSON(t, srv.URL+"/messages/2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alert", v.Get(push.KeyHeader).AsString())
	assert.Equal(t, 2, v.Get("seq").AsInt())
	assert.Equal(t, 5, v.Get("received_at").AsInt())

	status, v = getJSON(t, srv.URL+"/messages/99")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "message not found", v.Get("error").AsString())
}

func TestAdmin_BadRequests(t *testing.T) {
	srv, _ := adminServer(t)

	for _, path := range []string{"/messages/abc", "/messages?after=x", "/messages?limit=-1"} {
		status, v := getJSON(t, srv.URL+path)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.True(t, v.Has("error"), path)
	}
}

func TestAdmin_Metrics(t *testing.T) {
	srv, _ := adminServer(t)

	status, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "nubilum_acks_sent_total 1")
}
