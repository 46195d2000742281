package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/fx"

	"ict_bot/internal/bus"
	"ict_bot/internal/cache"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/modules/health/service"
	"ict_bot/internal/validation"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: fmt.Sprintf(":%d", cfg.Service.AdminPort)}
}

// Status собирает снимок состояния сервиса для /healthz и /status в телеграме.
type Status struct {
	State     *service.State
	Validator *validation.Validator
	Bus       *bus.Bus
	Cache     *cache.Manager
}

func NewStatus(state *service.State, v *validation.Validator, b *bus.Bus, c *cache.Manager) *Status {
	return &Status{State: state, Validator: v, Bus: b, Cache: c}
}

func (s *Status) Snapshot() map[string]any {
	resp := map[string]any{
		"ready":       s.State.Ready(),
		"wsConnected": s.State.WSConnected(),
		"uptimeSec":   int64(s.State.Uptime().Seconds()),
		"lastCandleUnix": func() int64 {
			t := s.State.LastCandle()
			if t.IsZero() {
				return 0
			}
			return t.Unix()
		}(),
		"validation": s.Validator.Stats(),
		"bus":        s.Bus.Stats(),
		"cache":      s.Cache.Stats(),
	}
	return resp
}

// StatusText — человекочитаемый статус для нотифайера.
func (s *Status) StatusText() string {
	v := s.Validator.Stats()
	b := s.Bus.Stats()
	c := s.Cache.Stats()

	var sb strings.Builder
	fmt.Fprintf(&sb, "uptime: %s\n", s.State.Uptime().Round(time.Second))
	fmt.Fprintf(&sb, "ws: %v, ready: %v\n", s.State.WSConnected(), s.State.Ready())
	if t := s.State.LastCandle(); !t.IsZero() {
		fmt.Fprintf(&sb, "last candle: %s\n", t.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "validated: %d, rejected: %d\n", v.Validated, v.Rejected)
	fmt.Fprintf(&sb, "bus: published %d, dropped %d\n", b.Published, b.Dropped)
	fmt.Fprintf(&sb, "cache: %d/%d, hit rate %.2f", c.Size, c.MaxSize, c.HitRate)
	return sb.String()
}

func NewMux(state *service.State, status *Status) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: сервис готов обслуживать трафик
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// полезный JSON для отладки
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status.Snapshot())
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewStatus,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
