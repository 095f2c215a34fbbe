package config

var serverConf Server

type Server struct {
	Address     string   `mapstructure:"address"`
	RunMode     string   `mapstructure:"runMode"`
	CorsOrigins []string `mapstructure:"corsOrigins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var logConf Log

func GetServerConf() Server {
	return serverConf
}

func GetRunMode() string {
	return serverConf.RunMode
}

func GetLogConf() Log {
	return logConf
}
