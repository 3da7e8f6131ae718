package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config models adline.yml.
type Config struct {
	Node struct {
		URL     string        `yaml:"url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"node"`
	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
	Account struct {
		Address string `yaml:"address"`
	} `yaml:"account"`
	Review   ReviewConfig `yaml:"review"`
	Voting   VotingConfig `yaml:"voting"`
	Rotation struct {
		Limit int `yaml:"limit"`
	} `yaml:"rotation"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig delivers journal events to an HTTP endpoint.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

type ReviewConfig struct {
	DeployStake       string        `yaml:"deploy_stake"`
	StartVotingAmount string        `yaml:"start_voting_amount"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxPolls          int           `yaml:"max_polls"`
	FeeMultiplier     string        `yaml:"fee_multiplier"`
}

type VotingConfig struct {
	CodeHash             string `yaml:"code_hash"`
	Description          string `yaml:"description"`
	StartDelay           int    `yaml:"start_delay"`
	VotingDuration       int    `yaml:"voting_duration"`
	PublicVotingDuration int    `yaml:"public_voting_duration"`
	WinnerThreshold      int    `yaml:"winner_threshold"`
	Quorum               int    `yaml:"quorum"`
	CommitteeSize        int    `yaml:"committee_size"`
	VotingMinPayment     string `yaml:"voting_min_payment"`
	OwnerFee             int    `yaml:"owner_fee"`
}

// DeployStakeAmount is the stake locked when deploying a voting contract.
func (r ReviewConfig) DeployStakeAmount() decimal.Decimal {
	return mustDecimal(r.DeployStake)
}

// StartAmount is the amount sent with the startVoting call.
func (r ReviewConfig) StartAmount() decimal.Decimal {
	return mustDecimal(r.StartVotingAmount)
}

// Multiplier scales estimated fees into the max fee sent with a transaction.
func (r ReviewConfig) Multiplier() decimal.Decimal {
	if r.FeeMultiplier == "" {
		return decimal.NewFromInt(1)
	}
	return mustDecimal(r.FeeMultiplier)
}

func (v VotingConfig) MinPayment() decimal.Decimal {
	return mustDecimal(v.VotingMinPayment)
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with adl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Node.URL == "" {
		return fmt.Errorf("config.node.url is required")
	}
	if u, err := url.Parse(c.Node.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.node.url must be an absolute url")
	}
	if c.Node.Timeout < 0 {
		return fmt.Errorf("config.node.timeout must not be negative")
	}
	switch c.Store.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config.store.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config.store.driver must be 'sqlite' or 'postgres'")
	}
	for name, raw := range map[string]string{
		"review.deploy_stake":        c.Review.DeployStake,
		"review.start_voting_amount": c.Review.StartVotingAmount,
		"review.fee_multiplier":      c.Review.FeeMultiplier,
		"voting.voting_min_payment":  c.Voting.VotingMinPayment,
	} {
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("config.%s: invalid amount %q", name, raw)
		}
		if d.IsNegative() {
			return fmt.Errorf("config.%s must not be negative", name)
		}
	}
	if c.Review.DeployStake == "" {
		return fmt.Errorf("config.review.deploy_stake is required")
	}
	if c.Review.PollInterval <= 0 {
		return fmt.Errorf("config.review.poll_interval must be positive")
	}
	if c.Review.MaxPolls < 0 {
		return fmt.Errorf("config.review.max_polls must not be negative")
	}
	if c.Voting.CodeHash == "" {
		return fmt.Errorf("config.voting.code_hash is required")
	}
	if c.Voting.VotingDuration <= 0 || c.Voting.PublicVotingDuration <= 0 {
		return fmt.Errorf("config.voting durations must be positive")
	}
	if c.Voting.WinnerThreshold <= 0 || c.Voting.WinnerThreshold > 100 {
		return fmt.Errorf("config.voting.winner_threshold must be within 1..100")
	}
	if c.Voting.Quorum < 0 || c.Voting.Quorum > 100 {
		return fmt.Errorf("config.voting.quorum must be within 0..100")
	}
	if c.Voting.CommitteeSize <= 0 {
		return fmt.Errorf("config.voting.committee_size must be positive")
	}
	if c.Rotation.Limit < 0 {
		return fmt.Errorf("config.rotation.limit must not be negative")
	}
	for i, hook := range c.Webhooks {
		if u, err := url.Parse(hook.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url must be an absolute url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "adline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(account string) string {
	return fmt.Sprintf(defaultTemplate, account)
}

// LoadOptional returns the default config if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(""), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for an account.
func Default(account string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(account))).Decode(&cfg)
	cfg.Account.Address = account
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `node:
  url: http://127.0.0.1:9009
  api_key: ""
  timeout: 30s

store:
  driver: sqlite
  dsn: ""

account:
  address: "%s"

review:
  deploy_stake: "8000"
  start_voting_amount: "1000"
  poll_interval: 10s
  max_polls: 0
  fee_multiplier: "1.1"

voting:
  code_hash: "0x02"
  description: "Please review the ad content. Approve it only if it is safe and the url points to the advertised resource."
  start_delay: 0
  voting_duration: 4320
  public_voting_duration: 2160
  winner_threshold: 66
  quorum: 1
  committee_size: 100
  voting_min_payment: "0"
  owner_fee: 0

rotation:
  limit: 5

log:
  level: info

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
