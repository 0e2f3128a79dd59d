// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Database    Database    `yaml:"database"`
	ValKey      ValKey      `yaml:"valkey"`
	Broker      Broker      `yaml:"broker"`
	Housekeeper Housekeeper `yaml:"housekeeper"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix"`
}

// Broker configures the OAuth broker itself: where the gateway lives,
// which console origin callbacks may come from, and how long a started
// authorization stays redeemable.
type Broker struct {
	GatewayURL     string        `yaml:"gatewayURL" default:"http://localhost:9090"`
	CallbackURL    string        `yaml:"callbackURL" default:"http://localhost:8080/oauth/callback"`
	PendingTTL     time.Duration `yaml:"pendingTTL" default:"15m"`
	RequestTimeout time.Duration `yaml:"requestTimeout" default:"30s"`
	Debug          bool          `yaml:"debug"`
	AllowPlainPKCE bool          `yaml:"allowPlainPKCE"`
	SeedFile       string        `yaml:"seedFile"`
}

type Housekeeper struct {
	TriggerInterval time.Duration `yaml:"triggerInterval" default:"5m"`
}
