package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type stubTransformer struct {
	err error
}

func (s stubTransformer) ApplyGarment(ctx context.Context, base valueobjects.ImageRef, garment *entities.GarmentRef) (valueobjects.ImageRef, error) {
	return "out.png", s.err
}

func (s stubTransformer) VaryPose(ctx context.Context, base valueobjects.ImageRef, instruction string) (valueobjects.ImageRef, error) {
	return "out.png", s.err
}

func TestTransformOutcome(t *testing.T) {
	assert.Equal(t, "ok", TransformOutcome(nil))
	assert.Equal(t, "validation", TransformOutcome(services.ErrNoModelSelected))
	assert.Equal(t, "content_policy", TransformOutcome(&services.TransformError{Kind: services.TransformKindContentPolicy, Err: errors.New("x")}))
	assert.Equal(t, "error", TransformOutcome(errors.New("x")))
}

func TestInstrumentTransformer(t *testing.T) {
	m := New()
	ctx := context.Background()

	ok := m.InstrumentTransformer(stubTransformer{})
	_, err := ok.VaryPose(ctx, "base.png", "Side profile view")
	require.NoError(t, err)

	failing := m.InstrumentTransformer(stubTransformer{err: &services.TransformError{Kind: services.TransformKindQuota, Err: errors.New("429")}})
	_, err = failing.ApplyGarment(ctx, "base.png", nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transforms.WithLabelValues("vary_pose", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transforms.WithLabelValues("apply_garment", "quota")))
}

func TestLoaderObserver(t *testing.T) {
	m := New()
	o := m.LoaderObserver()

	o.CacheHit()
	o.Deduplicated()
	o.FetchFinished(10*time.Millisecond, nil)
	o.FetchFinished(10*time.Millisecond, errors.New("404"))
	o.QueueDepth(6, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loaderEvents.WithLabelValues("cache_hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loaderEvents.WithLabelValues("fetch_error")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.loaderActive))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.loaderQueued))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()
	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/api/outfits/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	router.Handle("/metrics", m.Handler())

	req := httptest.NewRequest(http.MethodDelete, "/api/outfits/outfit_123", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("DELETE", "/api/outfits/{id}", "204")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gardrob_http_requests_total"))
}
