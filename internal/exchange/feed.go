package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"trade_engine/internal/models"
)

const restBaseURL = "https://www.okx.com"

// Feed — публичная маркет-дата OKX: REST для watchlist/прогрева,
// WebSocket для тикеров. Ключи не нужны.
type Feed struct {
	http     *http.Client
	wsDialer *websocket.Dialer
	instType string // "SPOT" / "SWAP"
}

func NewFeed() *Feed {
	return &Feed{
		http:     &http.Client{Timeout: 10 * time.Second},
		wsDialer: &websocket.Dialer{},
		instType: "SPOT",
	}
}

type tickersResp struct {
	Code string `json:"code"`
	Data []struct {
		InstID    string `json:"instId"`
		Last      string `json:"last"`
		BidPx     string `json:"bidPx"`
		AskPx     string `json:"askPx"`
		VolCcy24h string `json:"volCcy24h"`
		Ts        string `json:"ts"`
	} `json:"data"`
}

// TopByVolume — топ-N инструментов по суточному объёму в квоте.
func (f *Feed) TopByVolume(ctx context.Context, n int) ([]string, error) {
	url := fmt.Sprintf("%s/api/v5/market/tickers?instType=%s", restBaseURL, f.instType)
	var resp tickersResp
	if err := f.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("tickers: code=%s: %w", resp.Code, ErrAdapterUnavailable)
	}

	type row struct {
		inst string
		vol  float64
	}
	rows := make([]row, 0, len(resp.Data))
	for _, d := range resp.Data {
		rows = append(rows, row{inst: d.InstID, vol: parseF(d.VolCcy24h)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].vol > rows[j].vol })

	if n > len(rows) {
		n = len(rows)
	}
	out := make([]string, 0, n)
	for _, r := range rows[:n] {
		out = append(out, r.inst)
	}
	return out, nil
}

type candlesResp struct {
	Code string     `json:"code"`
	Data [][]string `json:"data"` // [ts, o, h, l, c, vol, volCcy, ...]
}

// Candles — последние n минутных свечей (нужны для прогрева кэша).
// OKX отдаёт от новых к старым — разворачиваем в хронологию.
func (f *Feed) Candles(ctx context.Context, pair string, n int) ([]models.MarketSnapshot, error) {
	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=1m&limit=%d", restBaseURL, pair, n)
	var resp candlesResp
	if err := f.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("candles %s: code=%s: %w", pair, resp.Code, ErrAdapterUnavailable)
	}

	out := make([]models.MarketSnapshot, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		row := resp.Data[i]
		if len(row) < 7 {
			continue
		}
		px := parseF(row[4])
		out = append(out, models.MarketSnapshot{
			Pair:      pair,
			Time:      parseTs(row[0]),
			Price:     px,
			Bid:       px,
			Ask:       px,
			Volume24h: parseF(row[6]),
		})
	}
	return out, nil
}

func (f *Feed) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrAdapterUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrAdapterUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %w", resp.StatusCode, ErrAdapterUnavailable)
	}
	return sonic.Unmarshal(body, dst)
}
