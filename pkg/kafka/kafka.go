package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers      string `envconfig:"KAFKA_BROKERS"`
	EventsTopic  string `envconfig:"KAFKA_EVENTS_TOPIC" default:"retention-events"`
	WriteTimeout int    `envconfig:"KAFKA_WRITE_TIMEOUT" default:"5"`
}

// Enabled reports whether any broker is configured.
func (c *Config) Enabled() bool {
	return len(c.BrokerList()) > 0
}

// BrokerList splits the comma separated broker string.
func (c *Config) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewWriter returns a writer for the events topic.
func (c *Config) NewWriter() *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.BrokerList()...),
		Topic:        c.EventsTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: time.Duration(c.WriteTimeout) * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
}
