package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServerMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg, "test")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.NoRoute(func(c *gin.Context) {
		c.Set(RouteLabelKey, "/users")
		c.Status(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/2", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/9", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("/users", "502")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewServerMetrics(reg, "test").Requests.WithLabelValues("/x", "200").Inc()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "localcommerce_test_http_requests_total"))
}

func TestRouteLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var labels []string
	r := gin.New()
	r.GET("/orders/:id", func(c *gin.Context) { labels = append(labels, RouteLabel(c)) })
	r.NoRoute(func(c *gin.Context) {
		labels = append(labels, RouteLabel(c))
		c.Set(RouteLabelKey, "/shops")
		labels = append(labels, RouteLabel(c))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/shops/1", nil))

	assert.Equal(t, []string{"/orders/:id", "none", "/shops"}, labels)
}
