package config

type Config interface {
	EnvConfig
	AppIDConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	AppID
}

// New builds the process configuration from environment variables. It fails
// when any required App ID setting is missing, so a misconfigured process
// never starts serving.
func New() (Config, error) {
	c := mainConfig{}
	if err := c.AppID.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
