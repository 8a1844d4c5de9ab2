// Package marketdata is the pull-side transport: a REST client for historical
// bars, batched snapshots, and watchlist management. It backs both the
// on-demand detail fetches and the degraded-mode polling loops.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rxtech-lab/market-watch/internal/types"
	"github.com/rxtech-lab/market-watch/pkg/errors"
)

// SnapshotChunkSize bounds the tickers query parameter of one snapshot
// request; larger watchlists are fetched in multiple requests.
const SnapshotChunkSize = 50

// DataSourceHeader carries the backend's provenance tag for a bars response.
const DataSourceHeader = "X-Data-Source"

const defaultTimeout = 15 * time.Second

// BarsQuery selects a historical bars window.
type BarsQuery struct {
	Symbol     string
	Timespan   string
	Multiplier int
	From       time.Time
	To         time.Time
	Limit      int
}

// BarsResult is a bars response plus its provenance tag; Source is empty when
// the backend did not set the header.
type BarsResult struct {
	Bars   []types.Bar
	Source string
}

// WatchlistItem is one persisted watchlist entry.
type WatchlistItem struct {
	Ticker  string `json:"ticker"`
	AddedAt string `json:"added_at,omitempty"`
}

type apiError struct {
	Detail string `json:"detail"`
}

// Client talks to the market-data backend over REST with bearer-token auth.
type Client struct {
	http  *resty.Client
	token func() string
}

// NewClient builds a client against the backend origin, e.g.
// "https://terminal.example.com". The token supplier is consulted on every
// request so credential rotation needs no client rebuild.
func NewClient(baseURL string, token func() string) *Client {
	if token == nil {
		token = func() string { return "" }
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + "/api/v1").
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")

	return &Client{http: http, token: token}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)

	if token := c.token(); token != "" {
		req.SetAuthToken(token)
	}

	return req
}

// ListBars fetches a historical bars window and the backend's data-source tag.
func (c *Client) ListBars(ctx context.Context, query BarsQuery) (*BarsResult, error) {
	symbol := types.NormalizeSymbol(query.Symbol)
	if !types.ValidSymbol(symbol) {
		return nil, errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol %q", query.Symbol)
	}

	params := map[string]string{
		"ticker": symbol,
	}

	if query.Timespan != "" {
		params["timespan"] = query.Timespan
	}

	if query.Multiplier > 0 {
		params["multiplier"] = fmt.Sprintf("%d", query.Multiplier)
	}

	if !query.From.IsZero() {
		params["from"] = query.From.UTC().Format("2006-01-02")
	}

	if !query.To.IsZero() {
		params["to"] = query.To.UTC().Format("2006-01-02")
	}

	if query.Limit > 0 {
		params["limit"] = fmt.Sprintf("%d", query.Limit)
	}

	var bars []types.Bar

	resp, err := c.request(ctx).
		SetQueryParams(params).
		SetResult(&bars).
		SetError(&apiError{}).
		Get("/market-data/bars")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeBarsFetchFailed, err, "failed to fetch bars for %s", symbol)
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeBarsFetchFailed,
			"failed to fetch bars for %s: %s", symbol, responseDetail(resp))
	}

	return &BarsResult{
		Bars:   bars,
		Source: resp.Header().Get(DataSourceHeader),
	}, nil
}

// ListSnapshots fetches current snapshots for the given symbols, splitting
// the request into chunks of SnapshotChunkSize. Symbol order within the
// result follows the backend's per-chunk order.
func (c *Client) ListSnapshots(ctx context.Context, symbols []string) ([]types.Snapshot, error) {
	cleaned := make([]string, 0, len(symbols))

	for _, symbol := range symbols {
		normalized := types.NormalizeSymbol(symbol)
		if normalized != "" {
			cleaned = append(cleaned, normalized)
		}
	}

	if len(cleaned) == 0 {
		return nil, nil
	}

	var all []types.Snapshot

	for start := 0; start < len(cleaned); start += SnapshotChunkSize {
		end := start + SnapshotChunkSize
		if end > len(cleaned) {
			end = len(cleaned)
		}

		var batch []types.Snapshot

		resp, err := c.request(ctx).
			SetQueryParam("tickers", strings.Join(cleaned[start:end], ",")).
			SetResult(&batch).
			SetError(&apiError{}).
			Get("/market-data/snapshots")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSnapshotFetchFailed, "failed to fetch snapshots", err)
		}

		if resp.IsError() {
			return nil, errors.Newf(errors.ErrCodeSnapshotFetchFailed,
				"failed to fetch snapshots: %s", responseDetail(resp))
		}

		all = append(all, batch...)
	}

	return all, nil
}

// ListWatchlist returns the persisted watchlist.
func (c *Client) ListWatchlist(ctx context.Context) ([]WatchlistItem, error) {
	var items []WatchlistItem

	resp, err := c.request(ctx).
		SetResult(&items).
		SetError(&apiError{}).
		Get("/watchlist")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWatchlistFetchFailed, "failed to fetch watchlist", err)
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeWatchlistFetchFailed,
			"failed to fetch watchlist: %s", responseDetail(resp))
	}

	return items, nil
}

// AddTicker persists one watchlist entry.
func (c *Client) AddTicker(ctx context.Context, symbol string) (*WatchlistItem, error) {
	normalized := types.NormalizeSymbol(symbol)
	if !types.ValidSymbol(normalized) {
		return nil, errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol %q", symbol)
	}

	var item WatchlistItem

	resp, err := c.request(ctx).
		SetBody(map[string]string{"ticker": normalized}).
		SetResult(&item).
		SetError(&apiError{}).
		Post("/watchlist")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRequestFailed, err, "failed to add %s to watchlist", normalized)
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeRequestFailed,
			"failed to add %s to watchlist: %s", normalized, responseDetail(resp))
	}

	if item.Ticker == "" {
		item.Ticker = normalized
	}

	return &item, nil
}

// RemoveTicker deletes one watchlist entry.
func (c *Client) RemoveTicker(ctx context.Context, symbol string) error {
	normalized := types.NormalizeSymbol(symbol)
	if !types.ValidSymbol(normalized) {
		return errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol %q", symbol)
	}

	resp, err := c.request(ctx).
		SetError(&apiError{}).
		Delete("/watchlist/" + normalized)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeRequestFailed, err, "failed to remove %s from watchlist", normalized)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeRequestFailed,
			"failed to remove %s from watchlist: %s", normalized, responseDetail(resp))
	}

	return nil
}

func responseDetail(resp *resty.Response) string {
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr != nil && apiErr.Detail != "" {
		return apiErr.Detail
	}

	return resp.Status()
}
