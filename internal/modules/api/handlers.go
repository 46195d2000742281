package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ict_bot/internal/cache"
	"ict_bot/internal/clock"
	"ict_bot/internal/feed"
	"ict_bot/internal/models"
	"ict_bot/internal/modules/health"
	"ict_bot/internal/storage/candles"
)

const (
	defaultLatestN = 100
	maxLatestN     = 1000
	maxRangeBars   = 50000
)

type Handler struct {
	repo      *candles.Repository
	cache     *cache.Manager
	status    *health.Status
	streamer  *feed.Streamer
	accountID int64
}

// candleJSON — внешнее представление бара; цены строками, время RFC3339 UTC.
type candleJSON struct {
	Symbol     string         `json:"symbol"`
	Timeframe  string         `json:"timeframe"`
	OpenTime   string         `json:"openTime"`
	CloseTime  string         `json:"closeTime"`
	Open       string         `json:"open"`
	High       string         `json:"high"`
	Low        string         `json:"low"`
	Close      string         `json:"close"`
	TickVolume int64          `json:"tickVolume"`
	RealVolume int64          `json:"realVolume"`
	Spread     int32          `json:"spread"`
	AccountID  int64          `json:"accountId"`
	Broker     string         `json:"broker"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func toJSON(list []models.Candle) []candleJSON {
	out := make([]candleJSON, 0, len(list))
	for i := range list {
		c := &list[i]
		out = append(out, candleJSON{
			Symbol:     c.Symbol,
			Timeframe:  string(c.Timeframe),
			OpenTime:   c.OpenTime.UTC().Format(time.RFC3339),
			CloseTime:  c.CloseTime().UTC().Format(time.RFC3339),
			Open:       c.Open.String(),
			High:       c.High.String(),
			Low:        c.Low.String(),
			Close:      c.Close.String(),
			TickVolume: c.TickVolume,
			RealVolume: c.RealVolume,
			Spread:     c.Spread,
			AccountID:  c.AccountID,
			Broker:     c.Broker,
			Metadata:   c.Metadata,
		})
	}
	return out
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (h *Handler) parseCommon(c *gin.Context) (symbol string, tf models.Timeframe, ok bool) {
	symbol = c.Query("symbol")
	if symbol == "" {
		badRequest(c, "symbol is required")
		return "", "", false
	}
	tf, err := models.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		badRequest(c, err.Error())
		return "", "", false
	}
	return symbol, tf, true
}

func (h *Handler) account(c *gin.Context) (int64, bool) {
	raw := c.Query("account_id")
	if raw == "" {
		return h.accountID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid account_id")
		return 0, false
	}
	return id, true
}

// Candles — GET /api/v1/candles?symbol=&timeframe=&from=&to=&account_id=
func (h *Handler) Candles(c *gin.Context) {
	symbol, tf, ok := h.parseCommon(c)
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		badRequest(c, "from must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		badRequest(c, "to must be RFC3339")
		return
	}
	if !from.Before(to) {
		badRequest(c, "from must be before to")
		return
	}
	if int(to.Sub(from)/tf.Duration()) > maxRangeBars {
		badRequest(c, "window too large")
		return
	}

	accountID, ok := h.account(c)
	if !ok {
		return
	}

	list, hit := h.cache.GetCandles(symbol, tf, from, to, accountID)
	if !hit {
		list, err = h.repo.Range(c.Request.Context(), symbol, tf, from, to, accountID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.cache.SetCandles(list, symbol, tf, from, to, accountID, 0)
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": string(tf),
		"from":      from.UTC().Format(time.RFC3339),
		"to":        to.UTC().Format(time.RFC3339),
		"count":     len(list),
		"cached":    hit,
		"candles":   toJSON(list),
	})
}

// LatestCandles — GET /api/v1/candles/latest?symbol=&timeframe=&n=
func (h *Handler) LatestCandles(c *gin.Context) {
	symbol, tf, ok := h.parseCommon(c)
	if !ok {
		return
	}

	n := defaultLatestN
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			badRequest(c, "n must be a positive integer")
			return
		}
		n = v
	}
	if n > maxLatestN {
		n = maxLatestN
	}

	accountID, ok := h.account(c)
	if !ok {
		return
	}

	// latest не кэшируем: правый край двигается каждым баром
	list, err := h.repo.Latest(c.Request.Context(), symbol, tf, n, accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": string(tf),
		"count":     len(list),
		"candles":   toJSON(list),
	})
}

// Sessions — GET /api/v1/sessions?at=RFC3339 (по умолчанию — сейчас)
func (h *Handler) Sessions(c *gin.Context) {
	at := clock.NowUTC()
	if raw := c.Query("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "at must be RFC3339")
			return
		}
		at = t.UTC()
	}

	active, err := clock.ActiveSessions(at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	primary, hasPrimary, err := clock.Primary(at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type sessionJSON struct {
		Name       string `json:"name"`
		Active     bool   `json:"active"`
		InKillzone bool   `json:"inKillzone"`
		StartUTC   string `json:"startUtc"`
		EndUTC     string `json:"endUtc"`
	}

	sessions := make([]sessionJSON, 0, len(clock.Sessions()))
	for _, s := range clock.Sessions() {
		start, end, bErr := clock.Bounds(at, s)
		if bErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": bErr.Error()})
			return
		}
		inKZ, kErr := clock.InKillzone(at, s)
		if kErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": kErr.Error()})
			return
		}
		isActive := false
		for _, a := range active {
			if a == s {
				isActive = true
				break
			}
		}
		sessions = append(sessions, sessionJSON{
			Name:       string(s),
			Active:     isActive,
			InKillzone: inKZ,
			StartUTC:   start.Format(time.RFC3339),
			EndUTC:     end.Format(time.RFC3339),
		})
	}

	resp := gin.H{
		"at":       at.Format(time.RFC3339),
		"sessions": sessions,
	}
	if hasPrimary {
		resp["primary"] = string(primary)
	}
	c.JSON(http.StatusOK, resp)
}

// Stats — GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	resp := h.status.Snapshot()
	if h.streamer != nil {
		resp["streamer"] = h.streamer.Stats()
	}
	c.JSON(http.StatusOK, resp)
}
