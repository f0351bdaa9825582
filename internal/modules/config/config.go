package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
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
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Планировщик
	TickInterval time.Duration `yaml:"tick_interval"` // напр. 5s
	StartCash    float64       `yaml:"start_cash"`    // стартовый депозит (paper-режим)
	FeePct       float64       `yaml:"fee_pct"`       // комиссия за сделку, напр. 0.1 => 0.1%

	// Риск
	// Сколько от депозита мы готовы потерять по СТОПУ, а не по ликвидации
	RiskPct          float64 `yaml:"risk_pct"` // например 1.0 => 1% equity
	MaxOpenPositions int     `yaml:"max_open_positions"`
	DailyLossPct     float64 `yaml:"daily_loss_pct"`    // лимит дневного убытка от утреннего equity
	CapitalFloorUSD  float64 `yaml:"capital_floor_usd"` // ниже — жёсткий стоп на новые входы
	ExposurePct      float64 `yaml:"exposure_pct"`      // макс. суммарный notional от equity
	StopPct          float64 `yaml:"stop_pct"`          // дефолтный стоп-лосс, напр. 10 => -10%

	// Режим рынка
	RegimeMinWindow int     `yaml:"regime_min_window"` // стартовое окно, меньше — Neutral
	TrendSlopeMin   float64 `yaml:"trend_slope_min"`   // порог нормализованного наклона
	RangeVolMax     float64 `yaml:"range_vol_max"`     // порог stddev/mean для Ranging

	// Стратегии
	HistoryWindow    int     `yaml:"history_window"` // окно для стратегий/режима
	MeanRevStds      float64 `yaml:"meanrev_stds"`
	BreakoutStds     float64 `yaml:"breakout_stds"`
	BreakoutVolFloor float64 `yaml:"breakout_vol_floor"` // минимальная волатильность для пробоя
	RangeFadeStds    float64 `yaml:"rangefade_stds"`

	// Допуск инструментов
	MinPrice     float64  `yaml:"min_price"`
	MinVolume24h float64  `yaml:"min_volume_24h"`
	MaxSpreadPct float64  `yaml:"max_spread_pct"`
	Denylist     []string `yaml:"denylist"`

	// ROI-таблица: минуты удержания -> минимальный профит в процентах.
	// Побеждает самый большой порог времени, который уже прошёл.
	ROI map[int]float64 `yaml:"roi"`

	// Таймауты заявок
	EntryTimeout time.Duration `yaml:"entry_timeout"`
	ExitTimeout  time.Duration `yaml:"exit_timeout"`

	// Watchlist
	WatchTopN       int           `yaml:"watch_top_n"`
	WatchRefresh    time.Duration `yaml:"watch_refresh"`
	HistoryCapacity int           `yaml:"history_capacity"`

	// Сверка баланса адаптера с внутренним леджером
	ReconcileTolerancePct float64       `yaml:"reconcile_tolerance_pct"`
	ReconcileInterval     time.Duration `yaml:"reconcile_interval"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

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
	config := Config{
		TickInterval: durationFromEnv("TICK_INTERVAL", "5s"),
		StartCash:    floatFromEnv("START_CASH", 10000),
		FeePct:       floatFromEnv("FEE_PCT", 0.1),

		RiskPct:          floatFromEnv("RISK_PCT", 1.0),
		MaxOpenPositions: intFromEnv("MAX_OPEN_POSITIONS", 10),
		DailyLossPct:     floatFromEnv("DAILY_LOSS_PCT", 5.0),
		CapitalFloorUSD:  floatFromEnv("CAPITAL_FLOOR_USD", 0),
		ExposurePct:      floatFromEnv("EXPOSURE_PCT", 100),
		StopPct:          floatFromEnv("STOP_PCT", 10),

		RegimeMinWindow: intFromEnv("REGIME_MIN_WINDOW", 30),
		TrendSlopeMin:   floatFromEnv("TREND_SLOPE_MIN", 0.0008),
		RangeVolMax:     floatFromEnv("RANGE_VOL_MAX", 0.004),

		HistoryWindow:    intFromEnv("HISTORY_WINDOW", 30),
		MeanRevStds:      floatFromEnv("MEANREV_STDS", 2.0),
		BreakoutStds:     floatFromEnv("BREAKOUT_STDS", 1.5),
		BreakoutVolFloor: floatFromEnv("BREAKOUT_VOL_FLOOR", 0.002),
		RangeFadeStds:    floatFromEnv("RANGEFADE_STDS", 1.0),

		MinPrice:     floatFromEnv("MIN_PRICE", 0.0001),
		MinVolume24h: floatFromEnv("MIN_VOLUME_24H", 100000),
		MaxSpreadPct: floatFromEnv("MAX_SPREAD_PCT", 0.5),

		EntryTimeout: durationFromEnv("ENTRY_TIMEOUT", "10m"),
		ExitTimeout:  durationFromEnv("EXIT_TIMEOUT", "5m"),

		WatchTopN:       intFromEnv("WATCH_TOP_N", 100),
		WatchRefresh:    durationFromEnv("WATCH_REFRESH", "30m"),
		HistoryCapacity: intFromEnv("HISTORY_CAPACITY", 100),

		ReconcileTolerancePct: floatFromEnv("RECONCILE_TOLERANCE_PCT", 0.5),
		ReconcileInterval:     durationFromEnv("RECONCILE_INTERVAL", "5m"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	// ROI как у всех: {0m:4%, 30m:2%, 60m:1%}
	if len(config.ROI) == 0 {
		config.ROI = map[int]float64{0: 4.0, 30: 2.0, 60: 1.0}
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

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.RiskPct <= 0 {
		return fmt.Errorf("risk_pct must be > 0")
	}
	if c.StopPct <= 0 {
		return fmt.Errorf("stop_pct must be > 0")
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("max_open_positions must be > 0")
	}
	if c.HistoryCapacity < c.HistoryWindow {
		return fmt.Errorf("history_capacity (%d) < history_window (%d)", c.HistoryCapacity, c.HistoryWindow)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be > 0")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
