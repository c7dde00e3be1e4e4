package session

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/transport"
)

// Defaults applied by Config.applyDefaults.
const (
	DefaultHost       = "api.dynect.net"
	DefaultPort       = 443
	DefaultAPIVersion = "current"

	// Redirect polling (the 307 loop inside Execute).
	DefaultPollInterval    = 1 * time.Second
	DefaultMaxPollAttempts = 120

	// Job-status polling (/Job/{id}/).
	DefaultJobPollInterval = 10 * time.Second
	DefaultJobTimeout      = 120 * time.Second
)

// Environment overrides honored when the corresponding field is unset.
const (
	envHost = "DYNECT_HOST"
	envPort = "DYNECT_PORT"
)

var validate = validator.New()

// LoadEnv reads DYNECT_HOST / DYNECT_PORT overrides from dotenv files before
// they are consulted for defaulting. Missing files are ignored and variables
// already present in the environment are never overridden; explicit Config
// fields always win.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Config carries everything needed to construct a Session. Credentials are
// required; connection parameters default to the public API endpoint.
type Config struct {
	Customer string `validate:"required"`
	Username string `validate:"required"`
	Password string `validate:"required"`

	Host       string // defaults to DefaultHost or $DYNECT_HOST
	Port       int    // defaults to DefaultPort or $DYNECT_PORT
	DisableTLS bool   // plain HTTP, test rigs only
	APIVersion string // API-Version header, defaults to "current"

	// SuppressAuth skips the authenticate call during construction. The
	// session comes up connected but without a token.
	SuppressAuth bool

	// EncryptionKey keys the credential box. Empty selects the built-in key.
	EncryptionKey []byte

	// Owner is the registry identity this session is bound under. A fresh
	// id is minted when empty, which effectively makes the session private
	// to whoever holds the returned pointer.
	Owner string

	// Registry to bind into. Nil selects the process default.
	Registry *Registry

	// History enables timestamped call records (see Session.History).
	History bool

	// ExtraHeaders are sent on every request in addition to the fixed set.
	ExtraHeaders map[string]string

	// Forward proxy, passed through to the transport.
	ProxyHost string
	ProxyPort int
	ProxyUser string
	ProxyPass string

	PollInterval    time.Duration // delay between redirect polls
	MaxPollAttempts int           // redirect poll bound before ErrQueryTimeout
	JobPollInterval time.Duration // delay between /Job/{id}/ polls
	JobTimeout      time.Duration // default WaitForJob deadline

	// Transport overrides the connection, for tests. Nil builds a real
	// connection from the fields above.
	Transport transport.Doer
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = os.Getenv(envHost)
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		if p, err := strconv.Atoi(os.Getenv(envPort)); err == nil && p > 0 {
			c.Port = p
		}
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Owner == "" {
		c.Owner = uuid.NewString()
	}
	if c.Registry == nil {
		c.Registry = defaultRegistry
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if c.JobPollInterval == 0 {
		c.JobPollInterval = DefaultJobPollInterval
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = DefaultJobTimeout
	}
}

func (c *Config) validateConfig() error {
	if err := validate.Struct(c); err != nil {
		return dynerrors.ErrArgument.Msg("invalid session config").Err(err)
	}
	return nil
}

// endpoint translates the config into a transport endpoint.
func (c *Config) endpoint() transport.Endpoint {
	return transport.Endpoint{
		Host:      c.Host,
		Port:      c.Port,
		TLS:       !c.DisableTLS,
		ProxyHost: c.ProxyHost,
		ProxyPort: c.ProxyPort,
		ProxyUser: c.ProxyUser,
		ProxyPass: c.ProxyPass,
	}
}
