// Package config holds the settings of the send and collect commands, whether
// built from flags or loaded from a YAML or JSON file.
package config

import (
	"time"

	"github.com/wesleyorama2/udpstress/internal/rate"
)

// Defaults.
const (
	DefaultPayloadSize             = 420
	DefaultSenderReportInterval    = time.Second
	DefaultCollectorReportInterval = 3 * time.Second
	DefaultListen                  = "127.0.0.1:60002"
	DefaultCost                    = 33 * time.Microsecond
	DefaultQueueSize               = 65536
	DefaultBufferSize              = 65535
	DefaultDrainTimeout            = 5 * time.Second

	// MaxPayloadSize is the largest UDP payload over IPv4.
	MaxPayloadSize = 65507
)

// File is the top-level layout of a configuration file. Either section may
// be omitted.
type File struct {
	Send    *SenderConfig    `json:"send,omitempty" yaml:"send,omitempty"`
	Collect *CollectorConfig `json:"collect,omitempty" yaml:"collect,omitempty"`
}

// SenderConfig configures the send command.
type SenderConfig struct {
	// URL is the destination as host:port
	URL string `json:"url" yaml:"url"`

	// Delay between two datagrams. Exclusive with Frequency.
	Delay *Duration `json:"delay,omitempty" yaml:"delay,omitempty"`

	// Frequency in datagrams per second. Exclusive with Delay.
	Frequency *uint64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`

	// TotalAmount is the number of datagrams to send
	TotalAmount Amount `json:"totalAmount" yaml:"totalAmount"`

	// PayloadSize is the size samples are bloated to
	PayloadSize int `json:"payloadSize,omitempty" yaml:"payloadSize,omitempty"`

	// Samples is an optional file to read samples from instead of the
	// built-in phrases
	Samples string `json:"samples,omitempty" yaml:"samples,omitempty"`

	// SamplesPath selects samples inside a JSON samples file
	SamplesPath string `json:"samplesPath,omitempty" yaml:"samplesPath,omitempty"`

	ReportInterval Duration `json:"reportInterval,omitempty" yaml:"reportInterval,omitempty"`
}

// CollectorConfig configures the collect command.
type CollectorConfig struct {
	// Listen is the local address as host:port
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`

	ReportInterval Duration `json:"reportInterval,omitempty" yaml:"reportInterval,omitempty"`

	// Workers is the size of the worker pool; 0 means one per CPU
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// QueueSize is how many datagrams may wait for a worker
	QueueSize int `json:"queueSize,omitempty" yaml:"queueSize,omitempty"`

	// Cost is the simulated processing time per datagram
	Cost *Duration `json:"cost,omitempty" yaml:"cost,omitempty"`

	// BufferSize is the largest datagram read in full; longer ones are
	// truncated
	BufferSize int `json:"bufferSize,omitempty" yaml:"bufferSize,omitempty"`

	// DrainTimeout bounds how long queued datagrams are still processed
	// after the collector is stopped
	DrainTimeout Duration `json:"drainTimeout,omitempty" yaml:"drainTimeout,omitempty"`
}

// Timing returns the rate the sender was asked for.
func (c *SenderConfig) Timing() (rate.Spec, error) {
	hasDelay := c.Delay != nil
	hasFrequency := c.Frequency != nil

	switch {
	case hasDelay && hasFrequency:
		return nil, &ConfigError{Kind: ConflictingTiming}
	case hasDelay:
		return rate.Delay(*c.Delay), nil
	case hasFrequency:
		return rate.Frequency(*c.Frequency), nil
	default:
		return nil, &ConfigError{Kind: MissingTiming}
	}
}

// ApplyDefaults fills in unset optional fields.
func (c *SenderConfig) ApplyDefaults() {
	if c.PayloadSize == 0 {
		c.PayloadSize = DefaultPayloadSize
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = Duration(DefaultSenderReportInterval)
	}
}

// ApplyDefaults fills in unset optional fields. Workers is left at zero and
// resolved by the collector.
func (c *CollectorConfig) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = Duration(DefaultCollectorReportInterval)
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Cost == nil {
		cost := Duration(DefaultCost)
		c.Cost = &cost
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = Duration(DefaultDrainTimeout)
	}
}
