// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

// Nonce store backends.
const (
	NonceBackendMemory   = "memory"
	NonceBackendRedis    = "redis"
	NonceBackendPostgres = "postgres"
)

// Secret resolver backends.
const (
	ResolverFile     = "file"
	ResolverPostgres = "postgres"
)

var (
	DebugFlag = &cli.BoolFlag{
		Name:    "debug",
		Usage:   "Enable development logging",
		EnvVars: []string{"APPSIG_DEBUG"},
	}

	ListenAddrFlag = &cli.StringFlag{
		Name:    "listen-addr",
		Usage:   "Address of the HTTP server",
		Value:   ":8080",
		EnvVars: []string{"APPSIG_LISTEN_ADDR"},
	}

	NonceBackendFlag = &cli.StringFlag{
		Name:    "nonce-backend",
		Usage:   "Nonce store (memory, redis, postgres)",
		Value:   NonceBackendMemory,
		EnvVars: []string{"APPSIG_NONCE_BACKEND"},
	}

	ResolverFlag = &cli.StringFlag{
		Name:    "resolver",
		Usage:   "Source of app credentials (file, postgres)",
		Value:   ResolverFile,
		EnvVars: []string{"APPSIG_RESOLVER"},
	}

	CredentialsFileFlag = &cli.StringFlag{
		Name:    "credentials-file",
		Usage:   "Credentials file, relative names are searched in the XDG config directories",
		Value:   secret.DefaultCredentialsFile,
		EnvVars: []string{"APPSIG_CREDENTIALS_FILE"},
	}

	PassphraseFlag = &cli.StringFlag{
		Name:    "passphrase",
		Usage:   "Passphrase of an encrypted credentials file",
		EnvVars: []string{"APPSIG_PASSPHRASE"},
	}

	RedisAddrFlag = &cli.StringFlag{
		Name:    "redis-addr",
		Usage:   "Redis address for the redis nonce backend",
		EnvVars: []string{"APPSIG_REDIS_ADDR"},
	}

	RedisPasswordFlag = &cli.StringFlag{
		Name:    "redis-password",
		Usage:   "Redis password",
		EnvVars: []string{"APPSIG_REDIS_PASSWORD"},
	}

	RedisDBFlag = &cli.IntFlag{
		Name:    "redis-db",
		Usage:   "Redis database",
		EnvVars: []string{"APPSIG_REDIS_DB"},
	}

	PostgresDSNFlag = &cli.StringFlag{
		Name:    "postgres-dsn",
		Usage:   "PostgreSQL connection string for the postgres backends",
		EnvVars: []string{"APPSIG_POSTGRES_DSN"},
	}

	CacheTTLFlag = &cli.DurationFlag{
		Name:    "cache-ttl",
		Usage:   "Lifetime of cached app credentials",
		Value:   secret.DefaultCacheTTL,
		EnvVars: []string{"APPSIG_CACHE_TTL"},
	}

	NotFoundTTLFlag = &cli.DurationFlag{
		Name:    "not-found-ttl",
		Usage:   "Lifetime of cached unknown app answers, newly added apps become visible at most this late",
		Value:   secret.DefaultNotFoundTTL,
		EnvVars: []string{"APPSIG_NOT_FOUND_TTL"},
	}

	WindowFlag = &cli.DurationFlag{
		Name:    "window",
		Usage:   "Maximum clock skew of a signed request",
		Value:   signature.DefaultWindow,
		EnvVars: []string{"APPSIG_WINDOW"},
	}

	NonceTTLFlag = &cli.DurationFlag{
		Name:    "nonce-ttl",
		Usage:   "Retention of used nonces, at least the window",
		Value:   signature.DefaultNonceTTL,
		EnvVars: []string{"APPSIG_NONCE_TTL"},
	}

	DependencyTimeoutFlag = &cli.DurationFlag{
		Name:    "dependency-timeout",
		Usage:   "Timeout of nonce store and credential lookups",
		Value:   signature.DefaultDependencyTimeout,
		EnvVars: []string{"APPSIG_DEPENDENCY_TIMEOUT"},
	}

	ShutdownTimeoutFlag = &cli.DurationFlag{
		Name:  "shutdown-timeout",
		Usage: "Grace period for in-flight requests on shutdown",
		Value: 10 * time.Second,
	}

	AppIDFlag = &cli.StringFlag{
		Name:     "app-id",
		Usage:    "App ID",
		Required: true,
		EnvVars:  []string{"APPSIG_APP_ID"},
	}

	AppSecretFlag = &cli.StringFlag{
		Name:     "app-secret",
		Usage:    "App secret",
		Required: true,
		EnvVars:  []string{"APPSIG_APP_SECRET"},
	}

	CipherKeyFlag = &cli.StringFlag{
		Name:     "cipher-key",
		Usage:    "16 byte cipher key",
		Required: true,
		EnvVars:  []string{"APPSIG_CIPHER_KEY"},
	}

	BodyFlag = &cli.StringFlag{
		Name:  "body",
		Usage: "Request body to sign, @path reads it from a file, @- from stdin",
	}

	OutputFileFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Append the generated credentials to this credentials file",
	}
)
