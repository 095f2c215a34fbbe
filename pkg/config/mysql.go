package config

var mysqlConf Mysql

type Mysql struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
}

func GetMysqlConf() Mysql {
	return mysqlConf
}

// Enabled 未配置 host 时不启用 mysql
func (m Mysql) Enabled() bool {
	return m.Host != ""
}
