package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	bridgeWSENV       = "BRIDGE_WS_URL"
	bridgeRESTENV     = "BRIDGE_REST_URL"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	// Мост терминала: откуда берём свечи (WS — стрим, REST — история)
	Bridge struct {
		WSURL   string `yaml:"ws_url"`
		RESTURL string `yaml:"rest_url"`
		// AccountID и Broker проставляются во все бары источника
		AccountID int64  `yaml:"account_id"`
		Broker    string `yaml:"broker"`
	} `yaml:"bridge"`

	// Что стримим и храним
	Feed struct {
		Symbols    []string `yaml:"symbols"`
		Timeframes []string `yaml:"timeframes"`
	} `yaml:"feed"`

	Validation struct {
		MaxSpreadPoints int32 `yaml:"max_spread_points"`
		MaxGapBars      int   `yaml:"max_gap_bars"`
		MinTickVolume   int64 `yaml:"min_tick_volume"`
	} `yaml:"validation"`

	Cache struct {
		MaxSize int           `yaml:"max_size"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	History struct {
		// BackfillEvery — период сканирования дыр
		BackfillEvery time.Duration `yaml:"backfill_every"`
		// Lookback — глубина, на которую ищем дыры
		Lookback time.Duration `yaml:"lookback"`
		// ChunkSize — максимум баров за один запрос к мосту
		ChunkSize int `yaml:"chunk_size"`
	} `yaml:"history"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{}

	config.Service.Host = getenvDefault("SERVICE_HOST", "0.0.0.0")
	config.Service.PublicPort = intFromEnv("PUBLIC_PORT", 8000)
	config.Service.AdminPort = intFromEnv("ADMIN_PORT", 8080)

	config.Log.Level = getenvDefault("LOG_LEVEL", "info")

	config.Bridge.AccountID = int64FromEnv("BRIDGE_ACCOUNT_ID", 0)
	config.Bridge.Broker = getenvDefault("BRIDGE_BROKER", "unknown")

	config.Feed.Symbols = listFromEnv("FEED_SYMBOLS", []string{"EURUSD", "GBPUSD", "USDJPY"})
	config.Feed.Timeframes = listFromEnv("FEED_TIMEFRAMES", []string{"M1", "M15", "H1"})

	config.Validation.MaxSpreadPoints = int32(intFromEnv("MAX_SPREAD_POINTS", 1000))
	config.Validation.MaxGapBars = intFromEnv("MAX_GAP_BARS", 5)
	config.Validation.MinTickVolume = int64FromEnv("MIN_TICK_VOLUME", 0)

	config.Cache.MaxSize = intFromEnv("CACHE_MAX_SIZE", 10000)
	config.Cache.TTL = durationFromEnv("CACHE_TTL", "1h")

	config.History.BackfillEvery = durationFromEnv("BACKFILL_EVERY", "15m")
	config.History.Lookback = durationFromEnv("BACKFILL_LOOKBACK", "72h")
	config.History.ChunkSize = intFromEnv("BACKFILL_CHUNK_SIZE", 5000)

	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}
	if v := os.Getenv(bridgeWSENV); v != "" {
		config.Bridge.WSURL = v
	}
	if v := os.Getenv(bridgeRESTENV); v != "" {
		config.Bridge.RESTURL = v
	}

	if config.DB == "" {
		return nil, fmt.Errorf("db_dsn is required (yaml db_dsn or env %s)", databaseDSN)
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func int64FromEnv(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func listFromEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
