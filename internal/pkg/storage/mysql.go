package storage

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"evidence-agent/internal/app/models"
	"evidence-agent/pkg/config"
)

// DB 未配置 mysql 时为 nil
var DB *gorm.DB

func initMysql(conf config.Mysql) error {
	if DB != nil {
		return nil
	}
	db, err := gorm.Open(mysql.Open(fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		conf.Username, conf.Password, conf.Host, conf.DBName)))
	if err != nil {
		log.Errorf("db connect fail:%s", err.Error())
		return fmt.Errorf("connect mysql: %w", err)
	}
	sqlDb, err := db.DB()
	if err != nil {
		return err
	}
	sqlDb.SetConnMaxLifetime(time.Hour * 6)
	sqlDb.SetMaxIdleConns(5)
	sqlDb.SetMaxOpenConns(20)
	if strings.Contains(config.GetRunMode(), "dev") {
		db = db.Debug()
	}
	if err := db.AutoMigrate(&models.UserPreference{}); err != nil {
		return fmt.Errorf("migrate user_preference: %w", err)
	}
	DB = db
	log.Info("mysql connection success")
	return nil
}
