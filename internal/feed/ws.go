package feed

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"ict_bot/internal/models"
	"ict_bot/pkg/logger"
)

// BridgeClient — клиент моста терминала: WS для стрима, REST для истории.
type BridgeClient struct {
	wsURL     string
	wsDialer  *websocket.Dialer
	rest      *restClient
	accountID int64
	broker    string
	onStatus  StatusFunc
}

type BridgeOption func(*BridgeClient)

// WithStatusFunc подписывает колбэк на смену состояния WS-соединения.
func WithStatusFunc(fn StatusFunc) BridgeOption {
	return func(c *BridgeClient) { c.onStatus = fn }
}

func NewBridgeClient(wsURL, restURL string, accountID int64, broker string, opts ...BridgeOption) *BridgeClient {
	c := &BridgeClient{
		wsURL:     wsURL,
		wsDialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		rest:      newRESTClient(restURL),
		accountID: accountID,
		broker:    broker,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *BridgeClient) status(connected bool) {
	if c.onStatus != nil {
		c.onStatus(connected)
	}
}

// StreamCandles — один WebSocket на таймфрейм с пачкой инструментов в args.
// Возвращает поток закрытых свечей; реконнект внутри, канал закрывается
// только по отмене контекста.
func (c *BridgeClient) StreamCandles(ctx context.Context, symbols []string, tf models.Timeframe) (<-chan models.Candle, error) {
	if !tf.Valid() {
		return nil, models.ErrUnknownTimeframe
	}
	ch := make(chan models.Candle)

	go func() {
		defer close(ch)

		if len(symbols) == 0 {
			return
		}

		// подготавливаем args сразу пачкой
		args := make([]map[string]string, 0, len(symbols))
		for _, s := range symbols {
			args = append(args, map[string]string{
				"symbol":    s,
				"timeframe": string(tf),
			})
		}

		for {
			logger.Info("[WS] connect %s %s %d symbols", c.wsURL, tf, len(symbols))
			conn, _, err := c.wsDialer.DialContext(ctx, c.wsURL, nil)
			if err != nil {
				logger.Warn("[WS] dial error %s: %v", tf, err)
				select {
				case <-ctx.Done():
					return
				default:
					time.Sleep(time.Second)
				}
				continue
			}
			c.status(true)

			sub := map[string]any{
				"op":   "subscribe",
				"args": args,
			}
			if err := conn.WriteJSON(sub); err != nil {
				logger.Warn("[WS] subscribe error %s: %v", tf, err)
				_ = conn.Close()
				c.status(false)
				continue
			}

			// keepalive ping каждые 20s — иначе мост закрывает простаивающее
			// соединение; живёт ровно столько, сколько read-loop этого коннекта
			stopPing := make(chan struct{})
			go c.keepalive(ctx, conn, stopPing)

			// основной read-loop
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					logger.Warn("[WS] read error %s: %v", tf, err)
					close(stopPing)
					_ = conn.Close()
					c.status(false)
					break
				}

				var frame struct {
					Op   string       `json:"op"`
					Data []wireCandle `json:"data"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Op == "pong" || len(frame.Data) == 0 {
					continue
				}

				// в одном кадре может приехать несколько свечей
				for i := range frame.Data {
					w := &frame.Data[i]
					if !w.Closed {
						continue // ждём закрытую свечу
					}

					candle, err := w.toCandle(c.accountID, c.broker)
					if err != nil {
						logger.Warn("[WS] bad candle frame %s %s: %v", w.Symbol, w.Timeframe, err)
						continue
					}

					select {
					case ch <- candle:
					case <-ctx.Done():
						close(stopPing)
						_ = conn.Close()
						c.status(false)
						return
					}
				}
			}

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

func (c *BridgeClient) keepalive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
			_ = conn.WriteJSON(map[string]string{"op": "ping"})
		}
	}
}

// CandleRange проксирует в REST-часть моста.
func (c *BridgeClient) CandleRange(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	return c.rest.candleRange(ctx, symbol, tf, from, to, limit, c.accountID, c.broker)
}
