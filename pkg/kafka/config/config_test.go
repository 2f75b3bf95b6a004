package kafka_config

import (
	"testing"
)

func TestLoad_DisabledByDefault(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "")

	cfg := Load()
	if cfg.Enabled() {
		t.Fatalf("expected Kafka disabled without brokers, got %v", cfg.Brokers)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("disabled config should always validate, got %v", errs)
	}
}

func TestLoad_SplitsBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv(EnvKafkaNotificationTopic, "custom-topic")

	cfg := Load()
	if !cfg.Enabled() {
		t.Fatal("expected Kafka enabled")
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "kafka-1:9092" || cfg.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Brokers)
	}
	if cfg.NotificationTopic != "custom-topic" {
		t.Errorf("expected custom-topic, got %s", cfg.NotificationTopic)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("expected valid config, got %v", errs)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"bad compression", func(cfg *Config) { cfg.ProducerCompression = "brotli" }},
		{"bad acks", func(cfg *Config) { cfg.ProducerRequireAcks = 2 }},
		{"bad offset", func(cfg *Config) { cfg.ConsumerStartOffset = 5 }},
		{"no topic", func(cfg *Config) { cfg.NotificationTopic = "" }},
		{"negative retries", func(cfg *Config) { cfg.ConsumerMaxRetries = -1 }},
		{"max below min bytes", func(cfg *Config) { cfg.ConsumerMaxBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvKafkaBrokers, "localhost:9092")
			cfg := Load()
			tt.mutate(cfg)
			if errs := cfg.Validate(); len(errs) != 1 {
				t.Errorf("expected exactly one error, got %v", errs)
			}
		})
	}
}
