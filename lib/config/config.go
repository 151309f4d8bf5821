package config

import (
	"errors"
	"path/filepath"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/viper"

	"github.com/go-i2p/go-onion/lib/rpc"
	"github.com/go-i2p/go-onion/lib/util"
)

var (
	// CfgFile is an explicit config file path, set by the --config flag.
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const GOONION_BASE_DIR = ".go-onion"

// InitConfig loads the configuration file into viper. Without CfgFile it
// reads $HOME/.go-onion/config.yaml and writes the defaults there when the
// file does not exist yet.
func InitConfig() error {
	if CfgFile != "" {
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildOnionDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	return handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault("protocol.path_length", d.Protocol.PathLength)
	viper.SetDefault("crypto.suite", d.Crypto.Suite)
	viper.SetDefault("directory.address", d.Directory.Address)

	viper.SetDefault("relay.node_id", d.Relay.NodeID)
	viper.SetDefault("relay.address", d.Relay.Address)
	viper.SetDefault("relay.rate_limit", d.Relay.RateLimit)
	viper.SetDefault("relay.rate_burst", d.Relay.RateBurst)

	viper.SetDefault("client.user_id", d.Client.UserID)
	viper.SetDefault("client.address", d.Client.Address)

	viper.SetDefault("transport.forward_timeout", d.Transport.ForwardTimeout)
	viper.SetDefault("transport.read_timeout", d.Transport.ReadTimeout)
	viper.SetDefault("transport.write_timeout", d.Transport.WriteTimeout)
	viper.SetDefault("transport.idle_timeout", d.Transport.IdleTimeout)

	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// CurrentConfig reads the active configuration from viper, using the same
// keys setDefaults writes.
func CurrentConfig() ConfigDefaults {
	return ConfigDefaults{
		Protocol: ProtocolDefaults{
			PathLength: viper.GetInt("protocol.path_length"),
		},
		Crypto: CryptoDefaults{
			Suite: viper.GetString("crypto.suite"),
		},
		Directory: DirectoryDefaults{
			Address: viper.GetString("directory.address"),
		},
		Relay: RelayDefaults{
			NodeID:    viper.GetInt("relay.node_id"),
			Address:   viper.GetString("relay.address"),
			RateLimit: viper.GetFloat64("relay.rate_limit"),
			RateBurst: viper.GetInt("relay.rate_burst"),
		},
		Client: ClientDefaults{
			UserID:  viper.GetInt("client.user_id"),
			Address: viper.GetString("client.address"),
		},
		Transport: TransportDefaults{
			ForwardTimeout: viper.GetDuration("transport.forward_timeout"),
			ReadTimeout:    viper.GetDuration("transport.read_timeout"),
			WriteTimeout:   viper.GetDuration("transport.write_timeout"),
			IdleTimeout:    viper.GetDuration("transport.idle_timeout"),
		},
		Metrics: MetricsDefaults{
			Enabled: viper.GetBool("metrics.enabled"),
		},
	}
}

// Reload re-reads the config file in use and validates the result. Flag
// overrides bound to viper keep precedence over the file.
func Reload() (ConfigDefaults, error) {
	if err := viper.ReadInConfig(); err != nil {
		return ConfigDefaults{}, oops.Wrapf(err, "reload config")
	}
	cfg := CurrentConfig()
	if err := Validate(cfg); err != nil {
		return ConfigDefaults{}, err
	}
	log.WithField("path", viper.ConfigFileUsed()).Info("Reloaded configuration")
	return cfg, nil
}

// ServerConfig returns the RPC server timeouts for t.
func (t TransportDefaults) ServerConfig() rpc.ServerConfig {
	return rpc.ServerConfig{
		ReadTimeout:  t.ReadTimeout,
		WriteTimeout: t.WriteTimeout,
		IdleTimeout:  t.IdleTimeout,
	}
}

func createDefaultConfig(defaultConfigDir string) error {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := util.EnsureDir(defaultConfigDir); err != nil {
		return oops.Wrapf(err, "could not create config directory")
	}
	if err := viper.SafeWriteConfigAs(defaultConfigFile); err != nil {
		return oops.Wrapf(err, "could not write default config file")
	}

	log.WithField("path", defaultConfigFile).Debug("Created default configuration")
	return nil
}

func handleConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		log.WithField("path", viper.ConfigFileUsed()).Debug("Using config file")
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && CfgFile == "" {
		return createDefaultConfig(BuildOnionDirPath())
	}
	if CfgFile != "" && !util.CheckFileExists(CfgFile) {
		return oops.Errorf("config file %s is not found", CfgFile)
	}
	return oops.Wrapf(err, "error reading config file")
}

// BuildOnionDirPath returns $HOME/.go-onion.
func BuildOnionDirPath() string {
	return filepath.Join(util.UserHome(), GOONION_BASE_DIR)
}
