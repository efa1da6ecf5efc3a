package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Service      Service      `yaml:"service"`
	Postgres     Postgres     `yaml:"postgres"`
	RabbitMQ     RabbitMQ     `yaml:"rabbitmq"`
	OrderAPI     OrderAPI     `yaml:"order_api"`
	WriteQueue   WriteQueue   `yaml:"write_queue"`
	RefundPolicy RefundPolicy `yaml:"refund_policy"`
	Integration  Integration  `yaml:"integration"`
	Monitoring   Monitoring   `yaml:"monitoring"`
	Connectivity Connectivity `yaml:"connectivity"`
}

type Service struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Postgres is optional; without a URL the in-memory adapters are used.
type Postgres struct {
	URL string `yaml:"url"`
}

// RabbitMQ is optional; without a URL events stay on the in-process bus.
type RabbitMQ struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// OrderAPI is optional; without a base URL an in-memory system of record is used.
type OrderAPI struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WriteQueue struct {
	Path          string        `yaml:"path"`
	MaxRetries    int           `yaml:"max_retries"`
	DrainInterval time.Duration `yaml:"drain_interval"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
}

type RefundPolicy struct {
	Enabled                 bool            `yaml:"enabled"`
	MaxManagerRefund        decimal.Decimal `yaml:"max_manager_refund"`
	RequireApproval         bool            `yaml:"require_approval"`
	ApprovalThreshold       decimal.Decimal `yaml:"approval_threshold"`
	AllowedPaymentMethods   []string        `yaml:"allowed_payment_methods"`
	AutoApproveSmallAmounts bool            `yaml:"auto_approve_small_amounts"`
	SmallAmountThreshold    decimal.Decimal `yaml:"small_amount_threshold"`
	TimeLimit               time.Duration   `yaml:"time_limit"`
}

func (p RefundPolicy) Policy() refund.Policy {
	return refund.Policy{
		Enabled:                 p.Enabled,
		MaxManagerRefund:        p.MaxManagerRefund,
		RequireApproval:         p.RequireApproval,
		ApprovalThreshold:       p.ApprovalThreshold,
		AllowedPaymentMethods:   append([]string(nil), p.AllowedPaymentMethods...),
		AutoApproveSmallAmounts: p.AutoApproveSmallAmounts,
		SmallAmountThreshold:    p.SmallAmountThreshold,
		TimeLimit:               p.TimeLimit,
	}
}

type Integration struct {
	PrintReceipts bool `yaml:"print_receipts"`
}

type Monitoring struct {
	AlertURL string `yaml:"alert_url"`
}

type Connectivity struct {
	ProbeURL      string        `yaml:"probe_url"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// ProbeTarget is the URL the connectivity monitor probes. Without an explicit probe
// URL it is the alert endpoint, the only remote write target, so a queue taken
// offline by a failed alert comes back online.
func (c *Config) ProbeTarget() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	return c.Monitoring.AlertURL
}

func Default() *Config {
	p := refund.DefaultPolicy()
	return &Config{
		Service: Service{
			Name:     "kitchen-ops",
			Env:      "dev",
			HTTPAddr: ":8080",
			LogLevel: "info",
		},
		RabbitMQ: RabbitMQ{Exchange: "kitchen.events"},
		OrderAPI: OrderAPI{Timeout: 10 * time.Second},
		WriteQueue: WriteQueue{
			Path:          "data/write-queue.json",
			MaxRetries:    5,
			DrainInterval: 60 * time.Second,
			SendTimeout:   30 * time.Second,
		},
		RefundPolicy: RefundPolicy{
			Enabled:                 p.Enabled,
			MaxManagerRefund:        p.MaxManagerRefund,
			RequireApproval:         p.RequireApproval,
			ApprovalThreshold:       p.ApprovalThreshold,
			AllowedPaymentMethods:   p.AllowedPaymentMethods,
			AutoApproveSmallAmounts: p.AutoApproveSmallAmounts,
			SmallAmountThreshold:    p.SmallAmountThreshold,
			TimeLimit:               p.TimeLimit,
		},
		Integration:  Integration{PrintReceipts: true},
		Connectivity: Connectivity{ProbeInterval: 15 * time.Second},
	}
}

// Load reads .env (if present), then the YAML file at path (if path is set), then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"SERVICE_NAME":           &c.Service.Name,
		"ENV":                    &c.Service.Env,
		"HTTP_ADDR":              &c.Service.HTTPAddr,
		"LOG_LEVEL":              &c.Service.LogLevel,
		"LOG_FILE":               &c.Service.LogFile,
		"DATABASE_URL":           &c.Postgres.URL,
		"RABBITMQ_URL":           &c.RabbitMQ.URL,
		"ORDER_API_URL":          &c.OrderAPI.BaseURL,
		"QUEUE_PATH":             &c.WriteQueue.Path,
		"MONITORING_ALERT_URL":   &c.Monitoring.AlertURL,
		"CONNECTIVITY_PROBE_URL": &c.Connectivity.ProbeURL,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("PRINT_RECEIPTS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PRINT_RECEIPTS: %w", err)
		}
		c.Integration.PrintReceipts = b
	}
	return nil
}

var ErrInvalid = errors.New("config: invalid")

func (c *Config) Validate() error {
	var errs []error
	if c.Service.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("%w: service.http_addr is required", ErrInvalid))
	}
	if c.WriteQueue.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("%w: write_queue.max_retries must be positive", ErrInvalid))
	}
	if c.WriteQueue.DrainInterval <= 0 || c.WriteQueue.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: write_queue intervals must be positive", ErrInvalid))
	}
	if c.ProbeTarget() != "" && c.Connectivity.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: connectivity.probe_interval must be positive", ErrInvalid))
	}
	p := c.RefundPolicy
	if p.MaxManagerRefund.IsNegative() || p.ApprovalThreshold.IsNegative() || p.SmallAmountThreshold.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: refund_policy thresholds must not be negative", ErrInvalid))
	}
	if p.TimeLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: refund_policy.time_limit must not be negative", ErrInvalid))
	}
	return errors.Join(errs...)
}
