package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work without any config file against a server on the
// same machine.
const (
	defaultServerURL       = "http://localhost:5000/api"
	defaultConnectTimeout  = "10s"
	defaultResponseTimeout = "60s"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultListenAddr      = ":5000"
	defaultStorage         = StorageFS
	defaultTokenTTL        = "1000s"
	defaultMaxUploadSize   = "1GiB"
	uploadDirName          = "files"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Client:  defaultClientConfig(),
		Logging: defaultLoggingConfig(),
		Server:  defaultServerConfig(),
	}
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:       defaultServerURL,
		ConnectTimeout:  defaultConnectTimeout,
		ResponseTimeout: defaultResponseTimeout,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:    defaultListenAddr,
		Storage:       defaultStorage,
		UploadDir:     DefaultUploadDir(),
		TokenTTL:      defaultTokenTTL,
		MaxUploadSize: defaultMaxUploadSize,
	}
}
