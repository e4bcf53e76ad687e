package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	router := mux.NewRouter()
	su := NewStatsUpdater(router)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")

	var match mux.RouteMatch
	req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
	assert.True(t, router.Match(req, &match), "expected handler for GET /debug/vars to be set")

	var postMatch mux.RouteMatch
	req = httptest.NewRequest(http.MethodPost, "/debug/vars", nil)
	router.Match(req, &postMatch)
	assert.Equal(t, mux.ErrMethodMismatch, postMatch.MatchErr, "expected POST /debug/vars to be rejected")
}

func TestStatsUpdater_Counters(t *testing.T) {
	router := mux.NewRouter()
	su := NewStatsUpdater(router)
	su.RegisterMetric(MetricMessagesSent)
	su.Run()
	defer su.Stop()

	su.Incr(MetricMessagesSent)
	su.Incr(MetricMessagesSent)
	su.Decr(MetricMessagesSent)
	su.Incr(MetricLogins)

	read := func() map[string]any {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var data map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&data))
		return data
	}

	assert.Eventually(t, func() bool {
		data := read()
		return data[MetricMessagesSent] == float64(1) && data[MetricLogins] == float64(1)
	}, time.Second, 10*time.Millisecond, "expected counters to be updated")

	assert.Contains(t, read(), "Uptime")
}
