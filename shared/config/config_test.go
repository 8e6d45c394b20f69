package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCommonConfig_EnvAndDefaults(t *testing.T) {
	t.Setenv("DB_USER", "pay")
	t.Setenv("DB_NAME", "payments")
	t.Setenv("KAFKA_BROKER", "k1:9092, k2:9092,")
	t.Setenv("REDIS_TIMEOUT", "5s")

	c, err := LoadCommonConfig(viper.New())
	require.NoError(t, err)

	assert.True(t, c.HasDB())
	assert.Equal(t, "postgres://pay:@localhost:5432/payments?sslmode=disable", c.GetDBURL())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers())
	assert.Equal(t, 5*time.Second, c.REDIS_TIMEOUT)
	assert.Equal(t, "PAYMENT_TASK_QUEUE", c.TEMPORAL_TASK_QUEUE)
	assert.Equal(t, "amqp://:@localhost:5672/", c.GetRabbitMQURL())
}
