package configs

import (
	"fmt"
	"os"
)

type Config struct {
	AppPort   string
	DBHost    string
	DBPort    string
	DBUser    string
	DBPass    string
	DBName    string
	RedisHost string
	RedisPort string

	KafkaBrokers    string
	KafkaTopic      string
	KafkaGroupID    string
	PushGatewayURL  string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

func LoadConfig() *Config {
	return &Config{
		AppPort:   getEnv("CHAT_APP_PORT", ":8085"),
		DBHost:    getEnv("CHAT_DB_HOST", "localhost"),
		DBPort:    getEnv("CHAT_DB_PORT", "5432"),
		DBUser:    getEnv("CHAT_DB_USER", "postgres"),
		DBPass:    getEnv("CHAT_DB_PASS", "postgres"),
		DBName:    getEnv("CHAT_DB_NAME", "chat_db"),
		RedisHost: getEnv("CHAT_REDIS_HOST", "localhost"),
		RedisPort: getEnv("CHAT_REDIS_PORT", "6379"),

		KafkaBrokers:   getEnv("CHAT_KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:     getEnv("CHAT_KAFKA_TOPIC", "chat.notifications"),
		KafkaGroupID:   getEnv("CHAT_KAFKA_GROUP_ID", "chat-notify"),
		PushGatewayURL: getEnv("PUSH_GATEWAY_URL", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:    getEnv("S3_BUCKET", "chat"),
		S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName,
	)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
