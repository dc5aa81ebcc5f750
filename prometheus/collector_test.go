package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusOK},
		{&tenf.NotFoundError{Op: "read", Key: "a"}, StatusNotFound},
		{&tenf.InvalidKeyError{Key: "", Reason: "empty"}, StatusInvalidKey},
		{&tenf.DeserializationError{Op: "read", Key: "a", Err: errors.New("x")}, StatusDeserialization},
		{&tenf.BackendError{Op: "write", Key: "a", Err: errors.New("x")}, StatusBackend},
		{context.Canceled, StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), "%v", tt.err)
	}
}

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordRead(time.Millisecond, nil)
	c.RecordRead(time.Millisecond, &tenf.NotFoundError{Op: "read", Key: "a"})
	c.RecordWrite(2*time.Millisecond, nil)
	c.RecordList(5, time.Millisecond, nil)
	c.RecordDelete(time.Millisecond, &tenf.BackendError{Op: "delete", Key: "a", Err: errors.New("boom")})
	c.RecordExists(false, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("read", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("read", StatusNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("write", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("delete", StatusBackend)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("exists", StatusOK)))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.listed))

	// read/ok, read/not_found, write/ok, list/ok, delete/backend, exists/ok
	assert.Equal(t, 6, testutil.CollectAndCount(c.total))
	assert.Equal(t, 6, testutil.CollectAndCount(c.duration))
}

func TestCollector_SharedRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.RecordWrite(time.Millisecond, nil)
	b.RecordWrite(time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(b.total.WithLabelValues("write", StatusOK)))
}

func TestCollector_Options(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, func(o *Options) {
		o.Namespace = "app"
		o.ConstLabels = prometheus.Labels{"backend": "memory"}
	})
	require.NoError(t, err)
	c.RecordRead(time.Millisecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "app_store_operations_total")
	assert.Contains(t, names, "app_store_operation_duration_seconds")
}

func TestCollector_NilRegisterer(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	c.RecordRead(time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("read", StatusOK)))
}

func TestCollector_WithStore(t *testing.T) {
	ctx := context.Background()
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	store := tenf.New(blobstore.NewMemoryStore(), tenf.WithMetricsCollector(c))
	key := tenf.NewKey(tenf.FollowValidations, "2024-06", "alice").String()

	require.NoError(t, store.Write(ctx, key, map[string]int{"n": 1}))
	_, err = store.Read(ctx, key)
	require.NoError(t, err)
	_, err = store.Read(ctx, tenf.NewKey(tenf.FollowValidations, "2024-06", "bob").String())
	require.True(t, tenf.IsNotFound(err))
	_, err = store.List(ctx, tenf.CollectionPrefix(tenf.FollowValidations))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("write", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("read", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.total.WithLabelValues("read", StatusNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.listed))
}
