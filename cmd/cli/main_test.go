package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/adapter/http/middleware"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/auth"
)

const callerHex = "0x0000000000000000000000000000000000001001"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1})

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestInvoiceGetSendsCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/invoices/7", r.URL.Path)
		assert.Equal(t, callerHex, r.Header.Get(middleware.CallerAddressHeader))
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":7,"status":"minted"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "--caller", callerHex, "--token", "tkn", "invoice", "get", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "minted"`)
}

func TestInvoiceGetRejectsBadID(t *testing.T) {
	_, err := execute(t, "invoice", "get", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidIDFormat)
}

func TestInvoiceMintPostsRequest(t *testing.T) {
	var got dto.MintInvoiceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/invoices", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":0}`))
	}))
	defer srv.Close()

	before := time.Now()
	_, err := execute(t, "--url", srv.URL, "--caller", callerHex,
		"invoice", "mint", "--face-value", "10000", "--due", "48h", "--document", "ipfs://doc")
	require.NoError(t, err)

	assert.Equal(t, "10000", got.FaceValue)
	assert.Equal(t, "ipfs://doc", got.DocumentRef)
	assert.WithinDuration(t, before.Add(48*time.Hour), got.DueDate, time.Minute)
}

func TestInvoiceListRequiresExactlyOneFilter(t *testing.T) {
	_, err := execute(t, "invoice", "list")
	assert.Error(t, err)

	_, err = execute(t, "invoice", "list", "--holder", callerHex, "--issuer", callerHex)
	assert.Error(t, err)
}

func TestInvoiceListQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, callerHex, r.URL.Query().Get("issuer"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"invoices":[],"limit":5,"offset":0}`))
	}))
	defer srv.Close()

	_, err := execute(t, "--url", srv.URL, "invoice", "list", "--issuer", callerHex, "--limit", "5")
	require.NoError(t, err)
}

func TestInvoiceSettleReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/invoices/3/settle", r.URL.Path)
		var req dto.SettleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "500", req.Repayment)

		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"insufficient repayment","message":"offered 500"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "--url", srv.URL, "invoice", "settle", "3", "--repayment", "500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient repayment")
	assert.Contains(t, err.Error(), "422")
}

func TestInvoiceBuyNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := execute(t, "--url", srv.URL, "invoice", "buy", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "...")
}

func TestLedgerConsistency(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		output  string
		wantErr bool
	}{
		{
			name:   "consistent",
			status: http.StatusOK,
			body:   `{"status":"ok","consistent":true,"vault_consistent":true,"supply_consistent":true}`,
			output: "Consistency check PASSED",
		},
		{
			name:    "inconsistent",
			status:  http.StatusConflict,
			body:    `{"status":"inconsistent","consistent":false,"vault_consistent":false,"supply_consistent":true}`,
			output:  "Consistency check FAILED",
			wantErr: true,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"internal error"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/ledger/consistency", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			out, err := execute(t, "--url", srv.URL, "ledger", "consistency")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out, tt.output)
		})
	}
}

func TestTokenCmdIssuesVerifiableToken(t *testing.T) {
	out, err := execute(t, "token", callerHex, "--secret", "dev-secret", "--role", "operator")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("dev-secret", time.Hour).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOperator, claims.Role)

	caller, err := claims.Caller()
	require.NoError(t, err)
	assert.Equal(t, callerHex, strings.ToLower(caller.Hex()))
}

func TestTokenCmdValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", callerHex)
	assert.Error(t, err, "missing secret")

	_, err = execute(t, "token", callerHex, "--secret", "s", "--role", "admin")
	assert.Error(t, err, "unknown role")

	_, err = execute(t, "token", "not-an-address", "--secret", "s")
	assert.Error(t, err, "bad address")
}
