package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/adapter/http/middleware"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/auth"
)

// options are the persistent flags shared by every API command.
type options struct {
	baseURL string
	timeout time.Duration
	caller  string
	token   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "gofactor-cli",
		Short:         "GoFactor CLI tool",
		Long:          `A command line interface for the GoFactor invoice marketplace API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the GoFactor API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.caller, "caller", "", "Caller address sent as "+middleware.CallerAddressHeader)
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token for servers with auth enabled")

	rootCmd.AddCommand(invoiceCmd(opts), ledgerCmd(opts), tokenCmd())
	return rootCmd
}

func invoiceCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Invoice operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, http.MethodGet, "/api/v1/invoices/"+id, nil)
		},
	})

	var (
		faceValue string
		due       time.Duration
		document  string
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint an invoice issued by the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			if due <= 0 {
				return fmt.Errorf("--due must be positive")
			}
			return opts.call(cmd, http.MethodPost, "/api/v1/invoices", dto.MintInvoiceRequest{
				FaceValue:   faceValue,
				DueDate:     time.Now().Add(due).UTC(),
				DocumentRef: document,
			})
		},
	}
	mint.Flags().StringVar(&faceValue, "face-value", "", "Face value in settlement currency units")
	mint.Flags().DurationVar(&due, "due", 30*24*time.Hour, "Time until the invoice falls due")
	mint.Flags().StringVar(&document, "document", "", "Off-chain document reference")
	_ = mint.MarkFlagRequired("face-value")
	cmd.AddCommand(mint)

	var (
		holder, issuer string
		limit, offset  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List invoices by holder or issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (holder == "") == (issuer == "") {
				return fmt.Errorf("exactly one of --holder or --issuer is required")
			}
			q := url.Values{}
			if holder != "" {
				q.Set("holder", holder)
			} else {
				q.Set("issuer", issuer)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			return opts.call(cmd, http.MethodGet, "/api/v1/invoices?"+q.Encode(), nil)
		},
	}
	list.Flags().StringVar(&holder, "holder", "", "Holder address")
	list.Flags().StringVar(&issuer, "issuer", "", "Issuer address")
	list.Flags().IntVar(&limit, "limit", 50, "Page size")
	list.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "buy <id>",
		Short: "Buy a listed invoice at its current price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, http.MethodPost, "/api/v1/invoices/"+id+"/buy", nil)
		},
	})

	var repayment string
	settle := &cobra.Command{
		Use:   "settle <id>",
		Short: "Repay an invoice as its issuer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, http.MethodPost, "/api/v1/invoices/"+id+"/settle", dto.SettleRequest{Repayment: repayment})
		},
	}
	settle.Flags().StringVar(&repayment, "repayment", "", "Amount offered")
	_ = settle.MarkFlagRequired("repayment")
	cmd.AddCommand(settle)

	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := opts.do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch status {
			case http.StatusOK:
				fmt.Fprintln(out, "Consistency check PASSED")
			case http.StatusConflict:
				fmt.Fprintln(out, "Consistency check FAILED")
			default:
				return fmt.Errorf("consistency check failed (status %d): %s", status, truncate(string(body), 200))
			}

			var report dto.ConsistencyResponse
			if err := json.Unmarshal(body, &report); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			printJSON(out, report)
			if !report.Consistent {
				return fmt.Errorf("ledger is inconsistent")
			}
			return nil
		},
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Issue a development JWT for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(addr, auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleParticipant), "Role claim: participant or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

// call performs a request and prints the JSON response. Non-2xx answers become errors.
func (o *options) call(cmd *cobra.Command, method, path string, body any) error {
	status, raw, err := o.do(cmd.Context(), method, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", apiErr.Error, apiErr.Message, status)
		}
		return fmt.Errorf("request failed (status %d): %s", status, truncate(string(raw), 200))
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	printJSON(cmd.OutOrStdout(), v)
	return nil
}

func (o *options) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(o.baseURL, "/")+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.caller != "" {
		req.Header.Set(middleware.CallerAddressHeader, o.caller)
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func parseID(raw string) (string, error) {
	id, err := domain.ParseInvoiceID(raw)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(id, 10), nil
}

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	fmt.Fprintln(w, string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
