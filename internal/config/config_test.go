package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("0xabc")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Account.Address != "0xabc" {
		t.Fatalf("account not applied: %q", cfg.Account.Address)
	}
	if got := cfg.Review.DeployStakeAmount().String(); got != "8000" {
		t.Fatalf("deploy stake %s", got)
	}
	if got := cfg.Review.StartAmount().String(); got != "1000" {
		t.Fatalf("start amount %s", got)
	}
	if cfg.Review.PollInterval != 10*time.Second {
		t.Fatalf("poll interval %s", cfg.Review.PollInterval)
	}
	if cfg.Server.BasePath != "/v0" || len(cfg.Webhooks) != 0 {
		t.Fatalf("server defaults %+v webhooks %d", cfg.Server, len(cfg.Webhooks))
	}
	if cfg.Rotation.Limit != 5 {
		t.Fatalf("rotation limit %d", cfg.Rotation.Limit)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
node:
  url: https://node.example:9009
review:
  deploy_stake: "500"
  poll_interval: 2s
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Node.URL != "https://node.example:9009" {
		t.Fatalf("node url %s", cfg.Node.URL)
	}
	if cfg.Review.DeployStakeAmount().String() != "500" {
		t.Fatalf("stake %s", cfg.Review.DeployStakeAmount())
	}
	if cfg.Review.StartVotingAmount != "1000" {
		t.Fatalf("expected untouched default, got %s", cfg.Review.StartVotingAmount)
	}
	if cfg.Voting.CodeHash != "0x02" {
		t.Fatalf("code hash %s", cfg.Voting.CodeHash)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"relative url":   "node:\n  url: /rpc\n",
		"bad stake":      "review:\n  deploy_stake: lots\n",
		"negative stake": "review:\n  deploy_stake: \"-1\"\n",
		"zero interval":  "review:\n  poll_interval: 0s\n",
		"pg without dsn": "store:\n  driver: postgres\n",
		"unknown driver": "store:\n  driver: mysql\n",
		"threshold":      "voting:\n  winner_threshold: 101\n",
		"log level":      "log:\n  level: trace\n",
		"webhook url":    "webhooks:\n  - url: hooks.example\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Node.URL == "" {
		t.Fatalf("expected default node url")
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "adline.yml"), []byte(GenerateDefault("0xfeed")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Account.Address != "0xfeed" {
		t.Fatalf("account %s", cfg.Account.Address)
	}
}
