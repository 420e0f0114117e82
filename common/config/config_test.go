package config

import (
	"testing"
	"time"
)

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_CLIENT_ID", "gw-1")
	t.Setenv("MQTT_USERNAME", "user")
	t.Setenv("MQTT_PASSWORD", "secret")
	t.Setenv("MQTT_CONNECT_TIMEOUT", "3s")

	cfg := MQTTConfig{Broker: "tcp://localhost:1883"}
	cfg.LoadFromEnv("MQTT")

	if cfg.Broker != "tcp://broker:1883" {
		t.Errorf("Expected broker 'tcp://broker:1883', got '%s'", cfg.Broker)
	}
	if cfg.ClientID != "gw-1" {
		t.Errorf("Expected client id 'gw-1', got '%s'", cfg.ClientID)
	}
	if cfg.Username != "user" || cfg.Password != "secret" {
		t.Errorf("Unexpected credentials %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("Expected connect timeout 3s, got %v", cfg.ConnectTimeout)
	}
}

func TestMQTTConfig_LoadFromEnv_KeepsDefaults(t *testing.T) {
	cfg := MQTTConfig{Broker: "tcp://localhost:1883", ConnectTimeout: 10 * time.Second}
	t.Setenv("MQTT_CONNECT_TIMEOUT", "not-a-duration")
	cfg.LoadFromEnv("MQTT")

	if cfg.Broker != "tcp://localhost:1883" {
		t.Errorf("Expected default broker to be kept, got '%s'", cfg.Broker)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("Expected default timeout to be kept, got %v", cfg.ConnectTimeout)
	}
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_CONNECT_TIMEOUT", "3s")

	cfg := RedisConfig{Addr: "localhost:6379"}
	cfg.LoadFromEnv("REDIS")

	if cfg.Addr != "redis:6380" {
		t.Errorf("Expected addr 'redis:6380', got '%s'", cfg.Addr)
	}
	if cfg.DB != 2 {
		t.Errorf("Expected db 2, got %d", cfg.DB)
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("Expected connect timeout 3s, got %v", cfg.ConnectTimeout)
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "postgres",
		Password: "pw",
		Database: "thermal",
		SSLMode:  "disable",
	}
	want := "host=db port=5432 user=postgres password=pw dbname=thermal sslmode=disable"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("Expected DSN %q, got %q", want, got)
	}
}
