package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gitlab.heather.loc/helios/itgate/pkg/itg"
	"gopkg.in/yaml.v3"
)

const (
	envTradePasswordHash = "ITG_TRADE_PASSWORD_HASH"
	envQuotPasswordHash  = "ITG_QUOT_PASSWORD_HASH"
	envDsn               = "ITG_DSN"
)

type connConfig struct {
	Transport     string `yaml:"transport"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	PublicKeyPath string `yaml:"public_key_path"`
	AesKey        string `yaml:"aes_key"`
}

type sessionConfig struct {
	Conn         connConfig `yaml:"conn"`
	UserID       string     `yaml:"user_id"`
	UserType     string     `yaml:"user_type"`
	PasswordHash string     `yaml:"password_hash"`
}

type orderConfig struct {
	Ticker string  `yaml:"ticker"`
	Price  float64 `yaml:"price"`
	Qty    float64 `yaml:"qty"`
	Side   string  `yaml:"side"`
}

type subscribeConfig struct {
	Symbol string `yaml:"symbol"`
	Level  string `yaml:"level"`
}

type redisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Host     string `yaml:"host"`
}

type kafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type journalConfig struct {
	Path string `yaml:"path"`
}

type config struct {
	Dsn         string          `yaml:"dsn"`
	LogLevel    string          `yaml:"log_level"`
	MetricsAddr string          `yaml:"metrics_addr"`
	Timeout     time.Duration   `yaml:"timeout"`
	Watch       time.Duration   `yaml:"watch"`
	Trade       sessionConfig   `yaml:"trade"`
	Quot        *sessionConfig  `yaml:"quot"`
	Order       orderConfig     `yaml:"order"`
	Subscribe   subscribeConfig `yaml:"subscribe"`
	Redis       *redisConfig    `yaml:"redis"`
	Kafka       *kafkaConfig    `yaml:"kafka"`
	Journal     *journalConfig  `yaml:"journal"`
}

func defaultConfig() config {
	return config{
		Dsn:      "mock://?ready=true&fixtures=true",
		LogLevel: "info",
		Timeout:  5 * time.Second,
		Watch:    10 * time.Second,
	}
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "fail read config")
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WithMessage(err, "fail parse config")
	}
	overrideWithEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid configuration")
	}
	return &cfg, nil
}

// overrideWithEnv let secrets and target stay out of the file
func overrideWithEnv(cfg *config) {
	if hash := os.Getenv(envTradePasswordHash); hash != "" {
		cfg.Trade.PasswordHash = hash
	}
	if hash := os.Getenv(envQuotPasswordHash); hash != "" && cfg.Quot != nil {
		cfg.Quot.PasswordHash = hash
	}
	if dsn := os.Getenv(envDsn); dsn != "" {
		cfg.Dsn = dsn
	}
}

func (c *config) validate() error {
	if c.Dsn == "" {
		return errors.New("dsn is empty")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if _, err := c.Trade.loginRequest(); err != nil {
		return errors.WithMessage(err, "trade")
	}
	if c.Quot != nil {
		if _, err := c.Quot.loginRequest(); err != nil {
			return errors.WithMessage(err, "quot")
		}
	}
	if _, err := c.Order.request(); err != nil {
		return errors.WithMessage(err, "order")
	}
	if c.Subscribe.Symbol != "" {
		if _, err := itg.TickerLevelStrToType(c.Subscribe.Level); err != nil {
			return err
		}
	}
	if c.Redis != nil && c.Redis.Addr == "" {
		return errors.New("redis addr is empty")
	}
	if c.Kafka != nil && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka brokers and topic are required")
	}
	if c.Journal != nil && c.Journal.Path == "" {
		return errors.New("journal path is empty")
	}
	return nil
}

func (c *connConfig) request() itg.ConnRequest {
	return itg.ConnRequest{
		Transport:     c.Transport,
		Host:          c.Host,
		Port:          c.Port,
		PublicKeyPath: c.PublicKeyPath,
		AesKey:        c.AesKey,
	}
}

func (s *sessionConfig) loginRequest() (itg.LoginRequest, error) {
	userType, err := itg.UserTypeStrToType(s.UserType)
	if err != nil {
		return itg.LoginRequest{}, err
	}
	if s.UserID == "" {
		return itg.LoginRequest{}, errors.New("user id is empty")
	}
	return itg.LoginRequest{UserID: s.UserID, UserType: userType, PasswordHash: s.PasswordHash}, nil
}

func (o *orderConfig) request() (itg.LimitOrderRequest, error) {
	side, err := itg.TradeModeStrToType(o.Side)
	if err != nil {
		return itg.LimitOrderRequest{}, err
	}
	order := itg.NewLimitOrder(o.Ticker, o.Price, o.Qty, side)
	return order, order.Validate()
}
