package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/engine/batch"
	"github.com/openlyhq/openly/internal/engine/cache"
	"github.com/openlyhq/openly/internal/logging"
)

const testToken = "sk_test_token"

// writeEnvelope writes a standard response envelope.
func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, ok bool, message string, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"ok":        ok,
		"message":   message,
		"data":      data,
		"requestId": "req_123",
	}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...api.Option) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := api.NewClient(srv.URL, testToken, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "/relative", "::bad"} {
		_, err := api.NewClient(raw, testToken)
		assert.ErrorIs(t, err, api.ErrInvalidBaseURL, raw)
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/public/payment/intent", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.PaymentIntentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "plink_abc", req.PaymentLink)

		writeEnvelope(t, w, http.StatusOK, true, "created", api.PaymentIntent{
			ID: "pi_1", PaymentLink: req.PaymentLink, Amount: req.Amount, Currency: "usd", Status: "requires_payment_method",
		})
	})

	pi, err := c.CreatePaymentIntent(context.Background(), api.PaymentIntentRequest{PaymentLink: "plink_abc", Amount: 25})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.InDelta(t, 25.0, pi.Amount, 0.0001)
}

func TestEnvelopeNotOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, http.StatusOK, false, "Payment link is inactive", nil)
	})

	_, err := c.CreatePaymentIntent(context.Background(), api.PaymentIntentRequest{PaymentLink: "plink_x"})
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "req_123", apiErr.RequestID)
	assert.Equal(t, "Payment link is inactive", batch.ErrorMessage(err))
	assert.Contains(t, err.Error(), "POST /public/payment/intent")
}

func TestNon2xx(t *testing.T) {
	t.Run("WithEnvelope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, http.StatusUnprocessableEntity, false, "Amount must be positive", nil)
		})
		_, err := c.CancelPaymentIntent(context.Background(), api.PaymentIntentRef{PaymentIntentID: "pi_1"})
		assert.True(t, api.IsStatus(err, http.StatusUnprocessableEntity))
		assert.Equal(t, "Amount must be positive", batch.ErrorMessage(err))
	})

	t.Run("PlainBody", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		})
		_, err := c.SyncPaymentIntent(context.Background(), api.PaymentIntentRef{PaymentIntentID: "pi_1"})
		assert.True(t, api.IsStatus(err, http.StatusBadGateway))
		assert.Equal(t, "Bad Gateway", batch.ErrorMessage(err))
	})
}

func TestMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	})
	_, err := c.CreateProduct(context.Background(), api.ProductInput{Name: "Mug", Price: 12})
	require.ErrorIs(t, err, api.ErrMalformedResponse)
}

func TestProtectedEndpointsNeedToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(t, w, http.StatusOK, true, "", map[string]any{"id": "pi_1"})
	}))
	t.Cleanup(srv.Close)

	c, err := api.NewClient(srv.URL, "")
	require.NoError(t, err)

	_, err = c.ProductStats(context.Background())
	require.ErrorIs(t, err, api.ErrMissingToken)
	assert.Zero(t, calls.Load(), "no request without a token")

	_, err = c.CreatePaymentIntent(context.Background(), api.PaymentIntentRequest{PaymentLink: "plink"})
	require.NoError(t, err, "public endpoints work without a token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpdateProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/protected/product/prod 1", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "id", "id travels in the path")
		assert.Equal(t, false, body["active"])

		writeEnvelope(t, w, http.StatusOK, true, "", api.Product{ID: "prod 1", Name: "Mug"})
	})

	active := false
	p, err := c.UpdateProduct(context.Background(), api.ProductUpdate{ID: "prod 1", Active: &active})
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)

	_, err = c.UpdateProduct(context.Background(), api.ProductUpdate{})
	require.ErrorIs(t, err, api.ErrMissingProductID)
}

func TestProductPaymentAmounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/protected/product/prod_9/payment-amounts", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, true, "", map[string]any{"amounts": []float64{5, 7.5}, "total": 12.5, "count": 2})
	})

	amounts, err := c.ProductPaymentAmounts(context.Background(), "prod_9")
	require.NoError(t, err)
	assert.Equal(t, "prod_9", amounts.ProductID)
	assert.InDelta(t, 12.5, amounts.Total, 0.0001)
}

func TestWithdraw_IdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/protected/wallet/withdraw/single", r.URL.Path)
		assert.Equal(t, "01HZX", r.Header.Get(api.HeaderIdempotencyKey))
		writeEnvelope(t, w, http.StatusOK, true, "", api.Withdrawal{ID: "wd_1", Status: "pending", Amount: 40})
	})

	wd, err := c.Withdraw(context.Background(), api.WithdrawalRequest{Address: "0xabc", Amount: 40, Asset: "USDC", Chain: "base"}, "01HZX")
	require.NoError(t, err)
	assert.Equal(t, "wd_1", wd.ID)
}

func TestWithdrawBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/protected/wallet/withdraw/batch", r.URL.Path)
		var body struct {
			Withdrawals []api.WithdrawalRequest `json:"withdrawals"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Withdrawals, 2)
		writeEnvelope(t, w, http.StatusOK, true, "", api.BatchWithdrawal{BatchID: "wb_1", Status: "queued"})
	})

	out, err := c.WithdrawBatch(context.Background(), []api.WithdrawalRequest{{Address: "0x1"}, {Address: "0x2"}}, "key")
	require.NoError(t, err)
	assert.Equal(t, "wb_1", out.BatchID)
}

func TestBalanceAndPayouts_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/protected/wallet/balance":
			assert.Equal(t, "base", r.URL.Query().Get("chain"))
			assert.Equal(t, "USDC", r.URL.Query().Get("asset"))
			writeEnvelope(t, w, http.StatusOK, true, "", map[string]any{"asset": "USDC", "balance": 120.5})
		case "/protected/wallet/payouttransactions/polygon":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "completed", r.URL.Query().Get("status"))
			writeEnvelope(t, w, http.StatusOK, true, "", map[string]any{
				"transactions": []map[string]any{{"id": "tx1", "amount": 3}},
				"total":        1,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	bal, err := c.Balance(context.Background(), api.BalanceQuery{Chain: "base", Asset: "USDC"})
	require.NoError(t, err)
	assert.Equal(t, "base", bal.Chain)
	assert.InDelta(t, 120.5, bal.Balance, 0.0001)

	page, err := c.PayoutTransactions(context.Background(), api.PayoutTransactionQuery{Chain: "polygon", Page: 2, Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "polygon", page.Chain)
	require.Len(t, page.Transactions, 1)

	_, err = c.Balance(context.Background(), api.BalanceQuery{})
	require.ErrorIs(t, err, api.ErrMissingChain)
	_, err = c.PayoutTransactions(context.Background(), api.PayoutTransactionQuery{})
	require.ErrorIs(t, err, api.ErrMissingChain)
}

func TestGetResponsesAreCached(t *testing.T) {
	store, err := cache.Open(t.TempDir(), cache.Options{Enabled: true, TTLSeconds: 60})
	require.NoError(t, err)

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(t, w, http.StatusOK, true, "", api.ProductStats{TotalProducts: 3})
	}, api.WithCache(store))

	for range 3 {
		stats, statsErr := c.ProductStats(context.Background())
		require.NoError(t, statsErr)
		assert.Equal(t, 3, stats.TotalProducts)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedGetIsNotCached(t *testing.T) {
	store, err := cache.Open(t.TempDir(), cache.Options{Enabled: true, TTLSeconds: 60})
	require.NoError(t, err)

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(t, w, http.StatusServiceUnavailable, false, "busy", nil)
	}, api.WithCache(store))

	_, _ = c.ProductStats(context.Background())
	_, _ = c.ProductStats(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestServerVersionAndTraceHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trace-42", r.Header.Get(api.HeaderTraceID))
		assert.Equal(t, "openly-cli/1.2.3", r.Header.Get("User-Agent"))
		w.Header().Set(api.HeaderAPIVersion, "2.1.0")
		writeEnvelope(t, w, http.StatusOK, true, "", api.PaymentIntent{ID: "pi"})
	}, api.WithUserAgent("openly-cli/1.2.3"))

	ctx := logging.ContextWithTraceID(context.Background(), "trace-42")
	_, err := c.CreatePaymentIntent(ctx, api.PaymentIntentRequest{PaymentLink: "x"})
	require.NoError(t, err, "an unsupported version only warns")
	assert.Equal(t, "2.1.0", c.ServerVersion())
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		writeEnvelope(t, w, http.StatusOK, true, "", nil)
	}, api.WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.SyncPaymentIntent(context.Background(), api.PaymentIntentRef{PaymentIntentID: "pi"})
	require.Error(t, err)
	var apiErr *api.Error
	assert.False(t, errors.As(err, &apiErr), "transport errors are not API errors")
}

func TestWithdrawInvalidatesWalletCache(t *testing.T) {
	store, err := cache.Open(t.TempDir(), cache.Options{Enabled: true, TTLSeconds: 300})
	require.NoError(t, err)

	var balance atomic.Int64
	balance.Store(100)
	var statsCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/protected/wallet/balance":
			writeEnvelope(t, w, http.StatusOK, true, "", api.Balance{Asset: "USDC", Balance: float64(balance.Load())})
		case "/protected/wallet/withdraw/single":
			balance.Add(-25)
			writeEnvelope(t, w, http.StatusOK, true, "", api.Withdrawal{ID: "wd_1", Status: "pending", Amount: 25})
		case "/protected/product/stats":
			statsCalls.Add(1)
			writeEnvelope(t, w, http.StatusOK, true, "", api.ProductStats{TotalProducts: 2})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, api.WithCache(store))

	ctx := context.Background()
	q := api.BalanceQuery{Chain: "base", Asset: "USDC"}

	before, err := c.Balance(ctx, q)
	require.NoError(t, err)
	assert.InDelta(t, 100, before.Balance, 0.0001)
	_, err = c.ProductStats(ctx)
	require.NoError(t, err)

	_, err = c.Withdraw(ctx, api.WithdrawalRequest{Address: "0xabc", Amount: 25, Asset: "USDC", Chain: "base"}, "k1")
	require.NoError(t, err)

	after, err := c.Balance(ctx, q)
	require.NoError(t, err)
	assert.InDelta(t, 75, after.Balance, 0.0001, "a withdrawal drops cached wallet reads")

	_, err = c.ProductStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), statsCalls.Load(), "product reads stay cached")
}

func TestFailedWriteKeepsCache(t *testing.T) {
	store, err := cache.Open(t.TempDir(), cache.Options{Enabled: true, TTLSeconds: 300})
	require.NoError(t, err)

	var balanceCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/protected/wallet/balance" {
			balanceCalls.Add(1)
			writeEnvelope(t, w, http.StatusOK, true, "", api.Balance{Balance: 10})
			return
		}
		writeEnvelope(t, w, http.StatusBadRequest, false, "insufficient funds", nil)
	}, api.WithCache(store))

	ctx := context.Background()
	_, err = c.Balance(ctx, api.BalanceQuery{Chain: "base"})
	require.NoError(t, err)
	_, err = c.Withdraw(ctx, api.WithdrawalRequest{Address: "0xabc", Amount: 50, Chain: "base"}, "k1")
	require.Error(t, err)
	_, err = c.Balance(ctx, api.BalanceQuery{Chain: "base"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), balanceCalls.Load())
}

func TestWithTimeout_DoesNotMutateCallerClient(t *testing.T) {
	hc := &http.Client{}
	_, err := api.NewClient("https://api.openly.test", testToken,
		api.WithTimeout(time.Second), api.WithHTTPClient(hc))
	require.NoError(t, err)
	assert.Zero(t, hc.Timeout)
}

func TestWithTimeout_AppliesAfterWithHTTPClient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		writeEnvelope(t, w, http.StatusOK, true, "", nil)
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	c, err := api.NewClient(srv.URL, testToken,
		api.WithTimeout(50*time.Millisecond), api.WithHTTPClient(&http.Client{}))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.SyncPaymentIntent(context.Background(), api.PaymentIntentRef{PaymentIntentID: "pi"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
