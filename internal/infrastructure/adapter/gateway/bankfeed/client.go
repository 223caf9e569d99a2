// Package bankfeed polls the external bank-statement endpoint. The feed is
// unstable in two independent ways: the path serving statements moves
// around, and the response envelope changes shape between deployments. The
// client deals with both by walking an ordered candidate list and accepting
// the first response that contains a recognizable statement list.
package bankfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// Config holds the feed connection settings.
type Config struct {
	BaseURL     string
	BankAccount string        // Used to build the per-request reference token
	Timeout     time.Duration // Per-candidate; the feed answers slowly when it answers at all
}

// candidate is one (method, path) combination to try against the feed.
type candidate struct {
	method string
	path   string
}

// The order mirrors what the feed has historically responded on, most likely
// first.
var candidates = []candidate{
	{http.MethodPost, ""},
	{http.MethodGet, ""},
	{http.MethodPost, "transaction"},
	{http.MethodPost, "api/transaction"},
	{http.MethodPost, "history"},
	{http.MethodGet, "transaction"},
}

// Client implements gateway.StatementSource over HTTP.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewClient creates a statement feed client.
func NewClient(cfg Config, timeProvider coreport.TimeProvider, logger coreport.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{},
		timeProvider: timeProvider,
		logger:       logger,
	}
}

// Fetch returns the current statement lines. Every candidate failing is not
// an error worth stopping a cycle for: the caller gets an empty list and the
// next cycle retries. The returned error is informational only.
func (c *Client) Fetch(ctx context.Context) ([]entity.StatementLine, error) {
	refNo := c.requestRefNo()

	var lastErr error
	for _, cand := range candidates {
		lines, err := c.try(ctx, cand, refNo)
		if err != nil {
			lastErr = err
			continue
		}
		if lines != nil {
			c.logger.Debug("Statement feed responded", map[string]any{
				"method": cand.method,
				"path":   cand.path,
				"lines":  len(lines),
			})
			return lines, nil
		}
	}

	if lastErr != nil {
		return []entity.StatementLine{}, fmt.Errorf("%w: %s", errs.ErrFetchFailed, lastErr.Error())
	}
	return []entity.StatementLine{}, nil
}

// try issues one candidate request. Returns (nil, nil) when the response was
// readable but carried no recognizable statement list.
func (c *Client) try(ctx context.Context, cand candidate, refNo string) ([]entity.StatementLine, error) {
	reqCtx, cancel := c.timeProvider.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + cand.path

	var req *http.Request
	var err error
	if cand.method == http.MethodPost {
		body, _ := json.Marshal(map[string]string{"refNo": refNo})
		req, err = http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if err == nil {
			q := url.Values{"refNo": {refNo}}
			req.URL.RawQuery = q.Encode()
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Statement endpoint unreachable", map[string]any{
			"method": cand.method,
			"path":   cand.path,
			"error":  err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	// A missing route just means this candidate is wrong, not that the feed
	// is down.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Statement endpoint returned error status", map[string]any{
			"method": cand.method,
			"path":   cand.path,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("%s %s: status %d", cand.method, cand.path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseStatementBody(data)
}

// requestRefNo builds the reference token the feed expects with each
// request: account number plus a second-resolution timestamp.
func (c *Client) requestRefNo() string {
	return fmt.Sprintf("%s-%s00", c.cfg.BankAccount, c.timeProvider.Now().Format("20060102150405"))
}

// wireLine tolerates the feed's numeric fields arriving as numbers or
// strings.
type wireLine struct {
	RefNo          string    `json:"refNo"`
	CreditAmount   flexInt64 `json:"creditAmount"`
	Description    string    `json:"description"`
	AddDescription string    `json:"addDescription"`
}

// flexInt64 decodes from a JSON number or a numeric string. Some feed
// deployments append a fractional part ("100000.00"); the currency has no
// fractional units, so anything past the point is dropped.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("credit amount %q is not an integer", s)
	}
	*f = flexInt64(n)
	return nil
}

// envelope covers the two object-shaped responses the feed produces.
type envelope struct {
	Result *struct {
		OK bool `json:"ok"`
	} `json:"result"`
	TransactionHistoryList []wireLine `json:"transactionHistoryList"`
}

// parseStatementBody accepts any of the known response shapes, first match
// wins: an envelope carrying transactionHistoryList (with or without a
// result marker), or a bare array of lines. Returns (nil, nil) when the body
// matches none of them.
func parseStatementBody(data []byte) ([]entity.StatementLine, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.TransactionHistoryList != nil {
		if env.Result == nil || env.Result.OK {
			return toLines(env.TransactionHistoryList), nil
		}
	}

	var bare []wireLine
	if err := json.Unmarshal(data, &bare); err == nil {
		return toLines(bare), nil
	}

	return nil, nil
}

func toLines(wire []wireLine) []entity.StatementLine {
	lines := make([]entity.StatementLine, 0, len(wire))
	for _, w := range wire {
		lines = append(lines, entity.StatementLine{
			RefNo:          w.RefNo,
			CreditAmount:   int64(w.CreditAmount),
			Description:    w.Description,
			AddDescription: w.AddDescription,
		})
	}
	return lines
}
