package exchange

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"trade_engine/internal/models"
)

const wsPublicURL = "wss://ws.okx.com:8443/ws/v5/public"

type tickerMsg struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID    string `json:"instId"`
		Last      string `json:"last"`
		BidPx     string `json:"bidPx"`
		AskPx     string `json:"askPx"`
		VolCcy24h string `json:"volCcy24h"`
		Ts        string `json:"ts"`
	} `json:"data"`
}

// Snapshots — один WebSocket на пачку инструментов, канал tickers.
// Реконнект с паузой, keepalive ping каждые 20s — иначе OKX рвёт соединение.
func (f *Feed) Snapshots(ctx context.Context, pairs []string) (<-chan models.MarketSnapshot, error) {
	if len(pairs) == 0 {
		return nil, ErrAdapterUnavailable
	}
	ch := make(chan models.MarketSnapshot, 256)

	args := make([]map[string]string, 0, len(pairs))
	for _, p := range pairs {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  p,
		})
	}

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			log.Printf("[WS] connect tickers, %d symbols", len(pairs))
			conn, _, err := f.wsDialer.Dial(wsPublicURL, nil)
			if err != nil {
				log.Printf("[WS] dial error: %v", err)
				time.Sleep(time.Second)
				continue
			}

			sub := map[string]any{"op": "subscribe", "args": args}
			if err := conn.WriteJSON(sub); err != nil {
				log.Printf("[WS] subscribe error: %v", err)
				_ = conn.Close()
				continue
			}

			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(20 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-stopPing:
						return
					case <-ctx.Done():
						return
					case <-t.C:
						_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
					}
				}
			}()

			f.readLoop(ctx, conn, ch)
			close(stopPing)
			_ = conn.Close()

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()

	return ch, nil
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- models.MarketSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(40 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] read error: %v", err)
			return
		}
		if string(raw) == "pong" {
			continue
		}

		var msg tickerMsg
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			continue // служебные ответы subscribe/error — пропускаем
		}
		if msg.Arg.Channel != "tickers" {
			continue
		}
		for _, d := range msg.Data {
			snap := models.MarketSnapshot{
				Pair:      d.InstID,
				Price:     parseF(d.Last),
				Bid:       parseF(d.BidPx),
				Ask:       parseF(d.AskPx),
				Volume24h: parseF(d.VolCcy24h),
				Time:      parseTs(d.Ts),
			}
			if snap.Price <= 0 {
				continue
			}
			select {
			case out <- snap:
			default:
				// потребитель не успевает — дропаем, придёт следующий тикер
			}
		}
	}
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseTs(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
