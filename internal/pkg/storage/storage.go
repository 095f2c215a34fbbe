package storage

import (
	"context"

	log "github.com/sirupsen/logrus"

	"evidence-agent/pkg/config"
)

// Init 按配置连接 mysql 与 redis，未配置的存储跳过
func Init(ctx context.Context) error {
	if conf := config.GetMysqlConf(); conf.Enabled() {
		if err := initMysql(conf); err != nil {
			return err
		}
	} else {
		log.Info("mysql not configured, preferences kept in memory")
	}

	if conf := config.GetRedisConf(); conf.Enabled() {
		if err := initRedis(ctx, conf); err != nil {
			return err
		}
	} else {
		log.Info("redis not configured, references cached in process")
	}
	return nil
}

func Close() {
	if Redis != nil {
		if err := Redis.Close(); err != nil {
			log.Warnf("close redis: %v", err)
		}
	}
	if DB != nil {
		if sqlDb, err := DB.DB(); err == nil {
			_ = sqlDb.Close()
		}
	}
}
