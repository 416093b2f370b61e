// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cli contains the flags and configuration of the appsig command.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// ServeConfig is the configuration of the serve command.
type ServeConfig struct {
	ListenAddr        string
	NonceBackend      string
	Resolver          string
	CredentialsFile   string
	Passphrase        string
	RedisAddr         string
	RedisPassword     string
	PostgresDSN       string
	RedisDB           int
	CacheTTL          time.Duration
	NotFoundTTL       time.Duration
	Window            time.Duration
	NonceTTL          time.Duration
	DependencyTimeout time.Duration
	ShutdownTimeout   time.Duration
	Debug             bool
}

// NewServeConfigFromCLI reads the serve configuration from the flags.
func NewServeConfigFromCLI(c *cli.Context) *ServeConfig {
	return &ServeConfig{
		ListenAddr:        c.String(ListenAddrFlag.Name),
		NonceBackend:      c.String(NonceBackendFlag.Name),
		Resolver:          c.String(ResolverFlag.Name),
		CredentialsFile:   c.String(CredentialsFileFlag.Name),
		Passphrase:        c.String(PassphraseFlag.Name),
		RedisAddr:         c.String(RedisAddrFlag.Name),
		RedisPassword:     c.String(RedisPasswordFlag.Name),
		RedisDB:           c.Int(RedisDBFlag.Name),
		PostgresDSN:       c.String(PostgresDSNFlag.Name),
		CacheTTL:          c.Duration(CacheTTLFlag.Name),
		NotFoundTTL:       c.Duration(NotFoundTTLFlag.Name),
		Window:            c.Duration(WindowFlag.Name),
		NonceTTL:          c.Duration(NonceTTLFlag.Name),
		DependencyTimeout: c.Duration(DependencyTimeoutFlag.Name),
		ShutdownTimeout:   c.Duration(ShutdownTimeoutFlag.Name),
		Debug:             c.Bool(DebugFlag.Name),
	}
}

// Validate returns all configuration problems at once.
func (cfg *ServeConfig) Validate() error {
	var err error

	switch cfg.NonceBackend {
	case NonceBackendMemory:
	case NonceBackendRedis:
		if cfg.RedisAddr == "" {
			err = multierror.Append(err, errors.New("redis nonce backend requires --redis-addr"))
		}
	case NonceBackendPostgres:
		if cfg.PostgresDSN == "" {
			err = multierror.Append(err, errors.New("postgres nonce backend requires --postgres-dsn"))
		}
	default:
		err = multierror.Append(err, fmt.Errorf("unknown nonce backend %q", cfg.NonceBackend))
	}

	switch cfg.Resolver {
	case ResolverFile:
		if cfg.CredentialsFile == "" {
			err = multierror.Append(err, errors.New("file resolver requires --credentials-file"))
		}
	case ResolverPostgres:
		if cfg.PostgresDSN == "" {
			err = multierror.Append(err, errors.New("postgres resolver requires --postgres-dsn"))
		}
	default:
		err = multierror.Append(err, fmt.Errorf("unknown resolver %q", cfg.Resolver))
	}

	if cfg.CacheTTL <= 0 {
		err = multierror.Append(err, fmt.Errorf("cache TTL must be positive, got %s", cfg.CacheTTL))
	}

	if cfg.NotFoundTTL <= 0 {
		err = multierror.Append(err, fmt.Errorf("not found TTL must be positive, got %s", cfg.NotFoundTTL))
	}

	if cfg.NonceTTL < cfg.Window {
		err = multierror.Append(err, fmt.Errorf("nonce TTL %s is shorter than the window %s", cfg.NonceTTL, cfg.Window))
	}

	return err
}

// UsesPostgres returns true if any backend needs the database.
func (cfg *ServeConfig) UsesPostgres() bool {
	return cfg.NonceBackend == NonceBackendPostgres || cfg.Resolver == ResolverPostgres
}

// NewLogger builds the process logger.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
