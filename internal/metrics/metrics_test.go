package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"adline/internal/catalog"
	"adline/internal/domain"
	"adline/internal/review"
)

func TestObserversFeedCollectors(t *testing.T) {
	require := require.New(t)
	m := New()
	m.ObserveTransition(review.Transition{AdID: "1", From: review.Previewing, To: review.Submitting})
	m.ObserveTransition(review.Transition{AdID: "1", From: review.Submitting, To: review.AwaitingDeployMining})
	m.ObserveFailure(review.Failure{AdID: "1", State: review.Submitting, Err: errors.New("boom")})
	m.ObservePoll("0xA")
	m.ObservePoll("0xA")
	m.ObserveOutcome(domain.TxMined)
	m.ObserveRPC("bcn_transaction", 20*time.Millisecond, nil)
	m.ObserveRPC("bcn_transaction", 20*time.Millisecond, errors.New("down"))

	require.Equal(1.0, testutil.ToFloat64(m.ReviewTransitions.WithLabelValues(string(review.Submitting))))
	require.Equal(1.0, testutil.ToFloat64(m.ReviewFailures.WithLabelValues(string(review.Submitting))))
	require.Equal(2.0, testutil.ToFloat64(m.WatcherPolls))
	require.Equal(1.0, testutil.ToFloat64(m.WatcherOutcomes.WithLabelValues("mined")))
	require.Equal(1.0, testutil.ToFloat64(m.RPCCalls.WithLabelValues("bcn_transaction", "error")))
}

func TestCatalogGaugeIsReplaced(t *testing.T) {
	require := require.New(t)
	m := New()
	m.ObserveCatalog(catalog.View{StatusCounts: map[string]int{"Draft": 2, "Showing": 1}})
	m.ObserveCatalog(catalog.View{StatusCounts: map[string]int{"Showing": 3}})
	require.Equal(1, testutil.CollectAndCount(m.CatalogAds))
	require.Equal(3.0, testutil.ToFloat64(m.CatalogAds.WithLabelValues("Showing")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(200, rec.Code)
	require.True(strings.Contains(rec.Body.String(), `adline_catalog_ads{status="Showing"} 3`))
}
