// shared/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CommonConfig holds infrastructure details used by MULTIPLE services
type CommonConfig struct {
	//Database (PostgreSQL) config
	DB_USER     string `mapstructure:"DB_USER"`
	DB_PASSWORD string `mapstructure:"DB_PASSWORD"`
	DB_NAME     string `mapstructure:"DB_NAME"`
	DB_HOST     string `mapstructure:"DB_HOST"`
	DB_PORT     string `mapstructure:"DB_PORT"`
	DB_SSLMODE  string `mapstructure:"DB_SSLMODE"`
	//Kafka config
	KAFKA_TOPIC        string `mapstructure:"KAFKA_TOPIC"`
	KAFKA_REPLAY_TOPIC string `mapstructure:"KAFKA_REPLAY_TOPIC"`
	KAFKA_BROKER       string `mapstructure:"KAFKA_BROKER"`
	KAFKA_GROUP_ID     string `mapstructure:"KAFKA_GROUP_ID"`
	//RabbitMQ config
	RABBITMQ_USER     string `mapstructure:"RABBITMQ_USER"`
	RABBITMQ_PASSWORD string `mapstructure:"RABBITMQ_PASSWORD"`
	RABBITMQ_HOST     string `mapstructure:"RABBITMQ_HOST"`
	RABBITMQ_PORT     string `mapstructure:"RABBITMQ_PORT"`
	RABBITMQ_QUEUE    string `mapstructure:"RABBITMQ_QUEUE"`
	//Redis config
	REDIS_ADDR     string        `mapstructure:"REDIS_ADDR"`
	REDIS_PASSWORD string        `mapstructure:"REDIS_PASSWORD"`
	REDIS_DB       int           `mapstructure:"REDIS_DB"`
	REDIS_TIMEOUT  time.Duration `mapstructure:"REDIS_TIMEOUT"`
	//Temporal config
	TEMPORAL_HOST       string `mapstructure:"TEMPORAL_HOST"`
	TEMPORAL_NAMESPACE  string `mapstructure:"TEMPORAL_NAMESPACE"`
	TEMPORAL_TASK_QUEUE string `mapstructure:"TEMPORAL_TASK_QUEUE"`
}

var commonKeys = []string{
	"DB_USER", "DB_PASSWORD", "DB_NAME", "DB_HOST", "DB_PORT", "DB_SSLMODE",
	"KAFKA_TOPIC", "KAFKA_REPLAY_TOPIC", "KAFKA_BROKER", "KAFKA_GROUP_ID",
	"RABBITMQ_USER", "RABBITMQ_PASSWORD", "RABBITMQ_HOST", "RABBITMQ_PORT", "RABBITMQ_QUEUE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_TIMEOUT",
	"TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
}

// SetCommonDefaults registers the shared defaults and env bindings on v.
func SetCommonDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("KAFKA_GROUP_ID", "payment-service")
	v.SetDefault("RABBITMQ_QUEUE", "entitlements")
	v.SetDefault("REDIS_TIMEOUT", 2*time.Second)
	v.SetDefault("TEMPORAL_NAMESPACE", "default")
	v.SetDefault("TEMPORAL_TASK_QUEUE", "PAYMENT_TASK_QUEUE")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so bind every env name explicitly.
	for _, k := range commonKeys {
		_ = v.BindEnv(k)
	}
}

// LoadCommonConfig returns the shared infrastructure config from v.
func LoadCommonConfig(v *viper.Viper) (*CommonConfig, error) {
	SetCommonDefaults(v)
	var c CommonConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode common config: %w", err)
	}
	return &c, nil
}

// HasDB reports whether a database was configured at all.
func (c *CommonConfig) HasDB() bool {
	return c.DB_NAME != "" && c.DB_USER != ""
}

// GetDBURL formats the config into a PostgreSQL connection string
func (c *CommonConfig) GetDBURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.DB_USER, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME, c.DB_SSLMODE)
}

// GetRabbitMQURL formats the config into a RabbitMQ connection string
func (c *CommonConfig) GetRabbitMQURL() string {
	//DEFAULTS STANDARD PORTS IF MISSING PREVENTS CRASHES
	host := c.RABBITMQ_HOST
	if host == "" {
		host = "localhost"
	}
	port := c.RABBITMQ_PORT
	if port == "" {
		port = "5672"
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.RABBITMQ_USER, c.RABBITMQ_PASSWORD, host, port)
}

// KafkaBrokers splits the comma separated broker list.
func (c *CommonConfig) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KAFKA_BROKER, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
