package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	PostcodeAPIURL string        `mapstructure:"POSTCODE_API_URL"`
	GeoTimeout     time.Duration `mapstructure:"GEO_TIMEOUT"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	GeoCacheTTL    time.Duration `mapstructure:"GEO_CACHE_TTL"`

	WeightCustomer float64 `mapstructure:"WEIGHT_CUSTOMER"`
	WeightEngineer float64 `mapstructure:"WEIGHT_ENGINEER"`
	WeightPlatform float64 `mapstructure:"WEIGHT_PLATFORM"`

	WorkloadPenaltyDay  float64 `mapstructure:"WORKLOAD_PENALTY_DAY"`
	WorkloadPenaltyWeek float64 `mapstructure:"WORKLOAD_PENALTY_WEEK"`
	ClusterRadiusKm     float64 `mapstructure:"CLUSTER_RADIUS_KM"`
	ClusterBonus        float64 `mapstructure:"CLUSTER_BONUS"`
	ScheduleBonus       float64 `mapstructure:"SCHEDULE_BONUS"`

	MarginFloor float64 `mapstructure:"MARGIN_FLOOR"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("POSTCODE_API_URL", "https://api.postcodes.io")
	v.SetDefault("GEO_TIMEOUT", "3s")
	v.SetDefault("GEO_CACHE_TTL", "24h")

	v.SetDefault("WEIGHT_CUSTOMER", 0.4)
	v.SetDefault("WEIGHT_ENGINEER", 0.3)
	v.SetDefault("WEIGHT_PLATFORM", 0.3)

	v.SetDefault("WORKLOAD_PENALTY_DAY", 5.0)
	v.SetDefault("WORKLOAD_PENALTY_WEEK", 2.0)
	v.SetDefault("CLUSTER_RADIUS_KM", 5.0)
	v.SetDefault("CLUSTER_BONUS", 25.0)
	v.SetDefault("SCHEDULE_BONUS", 10.0)

	v.SetDefault("MARGIN_FLOOR", 45.0)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
