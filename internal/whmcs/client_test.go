package whmcs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expanse/internal/catalog"
	"expanse/internal/config"
	"expanse/internal/external"
	"expanse/internal/types"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	cfg := config.WHMCSConfig{
		BaseURL:    serverURL,
		Identifier: types.SecretString("ident"),
		Secret:     types.SecretString("secret"),
		Currency:   "USD",
		Timeout:    5 * time.Second,
	}
	base := external.NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "whmcs-test", "test")
	return NewClientWithBase(cfg, base, cat, nil)
}

func TestFetchPrices_MapsKnownProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/includes/api.php", r.URL.Path)
		assert.Equal(t, "GetProducts", r.FormValue("action"))
		assert.Equal(t, "json", r.FormValue("responsetype"))
		assert.Equal(t, "ident", r.FormValue("identifier"))
		assert.Equal(t, "secret", r.FormValue("secret"))

		_, _ = w.Write([]byte(`{"result":"success","products":{"product":[
			{"pid":40,"pricing":{"monthly":9.99}},
			{"pid":42,"pricing":{"USD":{"monthly":"19.99"}}},
			{"pid":999,"pricing":{"monthly":99.99}}
		]}}`))
	}))
	defer srv.Close()

	prices := newTestClient(t, srv.URL).FetchPrices(context.Background())

	// pid 999 is not in the catalog and must be silently skipped.
	assert.Equal(t, map[string]float64{"4gb": 9.99, "8gb": 19.99}, prices)
}

func TestFetchPrices_MissingCredentialsSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.cfg.Secret = types.SecretString("")

	prices := client.FetchPrices(context.Background())

	assert.NotNil(t, prices)
	assert.Empty(t, prices)
	assert.Zero(t, hits.Load())
}

func TestFetchPrices_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`denied`))
	}))
	defer srv.Close()

	prices := newTestClient(t, srv.URL).FetchPrices(context.Background())

	assert.NotNil(t, prices)
	assert.Empty(t, prices)
}

func TestFetchPrices_APILevelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","message":"Invalid IP"}`))
	}))
	defer srv.Close()

	prices := newTestClient(t, srv.URL).FetchPrices(context.Background())

	assert.NotNil(t, prices)
	assert.Empty(t, prices)
}

func TestFetchPrices_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before use

	prices := newTestClient(t, srv.URL).FetchPrices(context.Background())

	assert.NotNil(t, prices)
	assert.Empty(t, prices)
}

// A record without a usable price is skipped; remaining records still map.
func TestFetchPrices_SkipsUnpriceableRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","products":{"product":[
			{"pid":40,"pricing":{"monthly":"-5.00"}},
			{"pid":41,"name":"no pricing at all"},
			{"pid":42,"price":"24.99"}
		]}}`))
	}))
	defer srv.Close()

	prices := newTestClient(t, srv.URL).FetchPrices(context.Background())

	assert.Equal(t, map[string]float64{"8gb": 24.99}, prices)
}

func TestFetchPrices_SingleProductObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","products":{"product":{"pid":"40","pricing":{"monthly":"9.99"}}}}`))
	}))
	defer srv.Close()

	prices := newTestClient(t, srv.URL).FetchPrices(context.Background())

	assert.Equal(t, map[string]float64{"4gb": 9.99}, prices)
}

func TestFetchPrices_TrailingSlashBaseURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/")
	client.FetchPrices(context.Background())

	assert.Equal(t, "/includes/api.php", gotPath)
}
