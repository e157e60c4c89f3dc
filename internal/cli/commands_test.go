package cli_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/cli"
	"github.com/openlyhq/openly/internal/engine/batch"
)

const testToken = "sk_test_token1234"

// fakeBackend is an in-memory Openly REST backend.
type fakeBackend struct {
	t *testing.T

	mu       sync.Mutex
	calls    map[string]int
	order    []string
	idemKeys []string
	authz    []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{t: t, calls: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) callCount(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[path]
}

func (fb *fakeBackend) totalCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, c := range fb.calls {
		n += c
	}
	return n
}

func (fb *fakeBackend) ok(w http.ResponseWriter, data any) {
	w.Header().Set(api.HeaderAPIVersion, "1.2.0")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": data, "requestId": "req_1"})
}

func (fb *fakeBackend) fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "message": msg, "requestId": "req_err"})
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.calls[r.URL.Path]++
	fb.authz = append(fb.authz, r.Header.Get("Authorization"))
	if key := r.Header.Get(api.HeaderIdempotencyKey); key != "" {
		fb.idemKeys = append(fb.idemKeys, key)
	}
	fb.mu.Unlock()

	switch {
	case r.URL.Path == "/public/payment/intent":
		var req api.PaymentIntentRequest
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&req))
		if strings.HasPrefix(req.PaymentLink, "expired") {
			fb.fail(w, http.StatusBadRequest, "payment link expired")
			return
		}
		fb.ok(w, api.PaymentIntent{
			ID: "pi_" + req.PaymentLink, PaymentLink: req.PaymentLink,
			Amount: req.Amount, Currency: "usd", Status: "requires_payment_method",
		})

	case r.URL.Path == "/public/payment/intent/cancel", r.URL.Path == "/public/payment/intent/sync":
		var ref api.PaymentIntentRef
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&ref))
		fb.mu.Lock()
		fb.order = append(fb.order, ref.PaymentIntentID)
		fb.mu.Unlock()
		if ref.PaymentIntentID == "pi_missing" {
			fb.fail(w, http.StatusNotFound, "payment intent not found")
			return
		}
		fb.ok(w, api.PaymentIntent{ID: ref.PaymentIntentID, Status: "canceled"})

	case r.URL.Path == "/protected/product/stats":
		fb.ok(w, api.ProductStats{TotalProducts: 12, ActiveProducts: 9, TotalPayments: 1500, TotalRevenue: 12345.5})

	case strings.HasPrefix(r.URL.Path, "/protected/product/") && strings.HasSuffix(r.URL.Path, "/payment-amounts"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/protected/product/"), "/payment-amounts")
		fb.ok(w, api.PaymentAmounts{ProductID: id, Amounts: []float64{5, 7.5}, Total: 12.5, Count: 2})

	case r.URL.Path == "/protected/product":
		var in api.ProductInput
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&in))
		fb.ok(w, api.Product{ID: "prod_" + in.Name, Name: in.Name, Price: in.Price, PaymentLink: "plink_" + in.Name, Active: true})

	case strings.HasPrefix(r.URL.Path, "/protected/product/") && r.Method == http.MethodPut:
		id := strings.TrimPrefix(r.URL.Path, "/protected/product/")
		fb.mu.Lock()
		fb.order = append(fb.order, id)
		fb.mu.Unlock()
		fb.ok(w, api.Product{ID: id, Name: "updated " + id})

	case r.URL.Path == "/protected/wallet/withdraw/single":
		var req api.WithdrawalRequest
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&req))
		fb.ok(w, api.Withdrawal{ID: "wd_1", Status: "pending", Address: req.Address, Amount: req.Amount, Asset: req.Asset, Chain: req.Chain})

	case r.URL.Path == "/protected/wallet/withdraw/batch":
		var body struct {
			Withdrawals []api.WithdrawalRequest `json:"withdrawals"`
		}
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&body))
		out := api.BatchWithdrawal{BatchID: "wb_1", Status: "pending"}
		for _, req := range body.Withdrawals {
			out.Withdrawals = append(out.Withdrawals, api.Withdrawal{Status: "pending", Address: req.Address, Amount: req.Amount})
		}
		fb.ok(w, out)

	case r.URL.Path == "/protected/wallet/balance":
		chain := r.URL.Query().Get("chain")
		if chain == "solana" {
			fb.fail(w, http.StatusBadRequest, "unsupported chain")
			return
		}
		fb.ok(w, api.Balance{Chain: chain, Asset: r.URL.Query().Get("asset"), Balance: 100})

	case strings.HasPrefix(r.URL.Path, "/protected/wallet/payouttransactions/"):
		chain := strings.TrimPrefix(r.URL.Path, "/protected/wallet/payouttransactions/")
		fb.ok(w, api.PayoutTransactionPage{Chain: chain, Total: 2, Transactions: []api.PayoutTransaction{
			{ID: "tx1", Amount: 10}, {ID: "tx2", Amount: 15},
		}})

	default:
		fb.fail(w, http.StatusNotFound, "no route "+r.URL.Path)
	}
}

// writeYAML writes v to a temp file and returns its path.
func writeYAML(t *testing.T, v any) string {
	t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func runBulk(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	return executeRoot(t, append(args, "--api-url", srv.URL, "--token", testToken, "--no-cache")...)
}

func fivePaymentIntents() []api.PaymentIntentRequest {
	return []api.PaymentIntentRequest{
		{PaymentLink: "coffee", Amount: 10},
		{PaymentLink: "expired-tea", Amount: 40},
		{PaymentLink: "cake", Amount: 20},
		{PaymentLink: "expired-juice", Amount: 50},
		{PaymentLink: "bagel", Amount: 30},
	}
}

func TestPaymentCreate_PartialFailure(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "payment", "create", "--file", writeYAML(t, fivePaymentIntents()))

	var partial *cli.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, batch.OpPayments, partial.Operation)
	assert.Equal(t, 2, partial.Failed)
	assert.Equal(t, 5, partial.Total)

	assert.Equal(t, 5, fb.callCount("/public/payment/intent"))
	assert.Contains(t, output, "Processing 5 payment intents...")
	assert.Contains(t, output, "3/5 payment intents succeeded, total 60.00")
	assert.Contains(t, output, "payment link expired")
	assert.Contains(t, output, "expired-tea")
	assert.Contains(t, output, "Succeeded: 3  Failed: 2  Total: 5  Amount: 60.00")
}

func TestPaymentCreate_TooManyItems(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	reqs := make([]api.PaymentIntentRequest, 21)
	for i := range reqs {
		reqs[i] = api.PaymentIntentRequest{PaymentLink: "coffee", Amount: 1}
	}

	_, err := runBulk(t, srv, "payment", "create", "--file", writeYAML(t, reqs))
	require.ErrorIs(t, err, batch.ErrBatchTooLarge)
	assert.Contains(t, err.Error(), "at most 20")

	var partial *cli.PartialFailureError
	assert.False(t, errors.As(err, &partial))
	assert.Zero(t, fb.totalCalls(), "no request may be sent for an oversized batch")
}

func TestPaymentCreate_EmptyFile(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	_, err := runBulk(t, srv, "payment", "create", "--file", writeYAML(t, []api.PaymentIntentRequest{}))
	require.ErrorIs(t, err, batch.ErrEmptyBatch)
	assert.Zero(t, fb.totalCalls())
}

func TestPaymentCreate_NoFile(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	_, err := runBulk(t, srv, "payment", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no items given")
}

func TestPaymentCreate_Stdin(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	var buf strings.Builder
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader("- paymentLink: coffee\n  amount: 4\n"))
	cmd.SetArgs([]string{"payment", "create", "--file", "-", "--api-url", srv.URL, "--no-cache"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 1, fb.callCount("/public/payment/intent"))
	assert.Contains(t, buf.String(), "1/1 payment intents succeeded")
}

func TestPaymentCreate_FailedOut(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)
	failedPath := filepath.Join(t.TempDir(), "retry", "failed.yaml")

	output, err := runBulk(t, srv, "payment", "create",
		"--file", writeYAML(t, fivePaymentIntents()), "--failed-out", failedPath)
	require.Error(t, err)
	assert.Contains(t, output, "Wrote 2 failed items to "+failedPath)

	data, readErr := os.ReadFile(failedPath)
	require.NoError(t, readErr)
	var failed []api.PaymentIntentRequest
	require.NoError(t, yaml.Unmarshal(data, &failed))
	assert.Equal(t, []api.PaymentIntentRequest{
		{PaymentLink: "expired-tea", Amount: 40},
		{PaymentLink: "expired-juice", Amount: 50},
	}, failed)
}

func TestPaymentCreate_JSONOutput(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	var stdout, stderr strings.Builder
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{
		"payment", "create", "--file", writeYAML(t, fivePaymentIntents()),
		"--api-url", srv.URL, "--no-cache", "-o", "json",
	})
	require.Error(t, cmd.Execute())

	var report struct {
		Operation string `json:"operation"`
		Results   []struct {
			Index   int                      `json:"index"`
			Input   api.PaymentIntentRequest `json:"input"`
			Success bool                     `json:"success"`
			Error   string                   `json:"error"`
		} `json:"results"`
		Stats batch.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout.String()), &report))

	assert.Equal(t, "payments", report.Operation)
	require.Len(t, report.Results, 5)
	for i, r := range report.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, fivePaymentIntents()[i].PaymentLink, r.Input.PaymentLink)
	}
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, "payment link expired", report.Results[1].Error)
	assert.Equal(t, batch.Stats{Total: 5, Successful: 3, Failed: 2, TotalAmount: 60}, report.Stats)
}

func TestPaymentCreate_InvalidOutputFlag(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	_, err := runBulk(t, srv, "payment", "create", "--file", writeYAML(t, fivePaymentIntents()), "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")
}

func TestPaymentCancel_SequentialOrder(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	ids := []string{"pi_3", "pi_1", "pi_missing", "pi_2"}
	output, err := runBulk(t, srv, append([]string{"payment", "cancel", "--reason", "duplicate"}, ids...)...)

	var partial *cli.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, ids, fb.order, "cancellations must reach the backend in input order")
	assert.Contains(t, output, "payment intent not found")
}

func TestPaymentCancel_FileAndArgs(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	path := writeYAML(t, []api.PaymentIntentRef{{PaymentIntentID: "pi_1"}})
	_, err := runBulk(t, srv, "payment", "cancel", "pi_2", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestPaymentSync(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	_, err := runBulk(t, srv, "payment", "sync", "pi_1", "pi_2", "pi_3", "pi_4", "pi_5")
	require.NoError(t, err)
	assert.Equal(t, 5, fb.callCount("/public/payment/intent/sync"))
}

func TestProductCreateAndUpdate(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "product", "create", "--file", writeYAML(t, []api.ProductInput{
		{Name: "coffee", Price: 4.5}, {Name: "tea", Price: 3},
	}))
	require.NoError(t, err)
	assert.Contains(t, output, "plink_coffee")
	assert.Equal(t, 2, fb.callCount("/protected/product"))

	price := 5.0
	_, err = runBulk(t, srv, "product", "update", "--file", writeYAML(t, []api.ProductUpdate{
		{ID: "prod_b", Price: &price}, {ID: "prod_a", Name: "Espresso"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"prod_b", "prod_a"}, fb.order)
}

func TestProductAmounts(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "product", "amounts", "prod_1", "prod_2", "prod_3")
	require.NoError(t, err)
	assert.Contains(t, output, "3/3 products succeeded, total 37.50")
	assert.Contains(t, output, "2 payments")
}

func TestProductAmounts_TooMany(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	ids := make([]string, 13)
	for i := range ids {
		ids[i] = "prod"
	}
	_, err := runBulk(t, srv, append([]string{"product", "amounts"}, ids...)...)
	require.ErrorIs(t, err, batch.ErrBatchTooLarge)
	assert.Zero(t, fb.totalCalls())
}

func TestProductStats(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "product", "stats")
	require.NoError(t, err)
	assert.Contains(t, output, "Payments:")
	assert.Contains(t, output, "1,500")
	assert.Contains(t, output, "12,345.50")

	output, err = runBulk(t, srv, "product", "stats", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, output, `"totalProducts": 12`)
}

func TestProtectedCommandWithoutToken(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	output, err := executeRoot(t, "product", "amounts", "prod_1", "prod_2", "--api-url", srv.URL, "--no-cache")

	var partial *cli.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, partial.Failed)
	assert.Contains(t, output, "API token is required")
	assert.Zero(t, fb.totalCalls())
}

func withdrawals() []api.WithdrawalRequest {
	return []api.WithdrawalRequest{
		{Address: "0xaaa", Amount: 25, Asset: "USDC", Chain: "base"},
		{Address: "0xbbb", Amount: 75, Asset: "USDC", Chain: "base"},
	}
}

func TestWalletWithdraw_RequiresConfirmation(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	_, err := runBulk(t, srv, "wallet", "withdraw", "--file", writeYAML(t, withdrawals()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Zero(t, fb.totalCalls())
}

func TestWalletWithdraw_SizeGuardBeforeConfirmation(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	reqs := make([]api.WithdrawalRequest, 11)
	for i := range reqs {
		reqs[i] = api.WithdrawalRequest{Address: fmt.Sprintf("0x%03d", i), Amount: 1, Asset: "USDC", Chain: "base"}
	}
	_, err := runBulk(t, srv, "wallet", "withdraw", "--file", writeYAML(t, reqs))
	require.ErrorIs(t, err, batch.ErrBatchTooLarge)
	assert.NotContains(t, err.Error(), "--yes", "oversized batches fail before the prompt")

	_, err = runBulk(t, srv, "wallet", "withdraw", "--file", writeYAML(t, []api.WithdrawalRequest{}))
	require.ErrorIs(t, err, batch.ErrEmptyBatch)
	assert.Zero(t, fb.totalCalls())
}

func TestWalletWithdraw_Sequential(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "wallet", "withdraw", "--file", writeYAML(t, withdrawals()), "--yes")
	require.NoError(t, err)
	assert.Equal(t, 2, fb.callCount("/protected/wallet/withdraw/single"))
	assert.Contains(t, output, "2/2 withdrawals succeeded, total 100.00")

	require.Len(t, fb.idemKeys, 2)
	assert.NotEqual(t, fb.idemKeys[0], fb.idemKeys[1], "each withdrawal needs its own idempotency key")
	for _, authz := range fb.authz {
		assert.Equal(t, "Bearer "+testToken, authz)
	}
}

func TestWalletWithdraw_Atomic(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "wallet", "withdraw", "--file", writeYAML(t, withdrawals()), "--yes", "--atomic")
	require.NoError(t, err)
	assert.Equal(t, 1, fb.callCount("/protected/wallet/withdraw/batch"))
	assert.Zero(t, fb.callCount("/protected/wallet/withdraw/single"))
	assert.Contains(t, output, "2/2 withdrawals succeeded")
}

func TestWalletBalance(t *testing.T) {
	setupCLITest(t)
	_, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "wallet", "balance", "--chain", "base", "--chain", "solana", "--chain", "polygon", "--asset", "USDC")

	var partial *cli.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.Contains(t, output, "unsupported chain")
	assert.Contains(t, output, "2/3 balance checks succeeded, total 200.00")
}

func TestWalletPayouts(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	output, err := runBulk(t, srv, "wallet", "payouts", "base", "polygon", "--status", "completed", "--limit", "50")
	require.NoError(t, err)
	assert.Equal(t, 1, fb.callCount("/protected/wallet/payouttransactions/base"))
	assert.Equal(t, 1, fb.callCount("/protected/wallet/payouttransactions/polygon"))
	assert.Contains(t, output, "total 50.00")
	assert.Contains(t, output, "2 of 2 transactions")
}

func TestPolicyOverrideFromProjectConfig(t *testing.T) {
	setupCLITest(t)
	fb, srv := newFakeBackend(t)

	projectDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".openly"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".openly", "config.yaml"),
		[]byte("policies:\n  payments:\n    max_items: 3\n"), 0o600))

	_, err := runBulk(t, srv, "payment", "create", "--project-dir", projectDir,
		"--file", writeYAML(t, fivePaymentIntents()))
	require.ErrorIs(t, err, batch.ErrBatchTooLarge)
	assert.Contains(t, err.Error(), "at most 3")
	assert.Zero(t, fb.totalCalls())
}
