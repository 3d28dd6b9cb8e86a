package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("texts_file", "")

	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 50*time.Second)

	viper.SetDefault("catalog.page_size", 8)
	viper.SetDefault("session.ttl", 30*time.Minute)

	viper.SetDefault("health.listen", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
