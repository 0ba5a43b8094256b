package main

var DefConfig Config

type Config struct {
	Host      string `json:"host"`
	PprofHost string `json:"pprof_host" yaml:"pprof_host" mapstructure:"pprof_host"`
	Secret    string `json:"secret"`
	DB        string `json:"db"`
	DBLog     bool   `json:"dblog"`

	Session SessionConfig `json:"session" yaml:"session" mapstructure:"session"`
	Client  ClientConfig  `json:"client" yaml:"client" mapstructure:"client"`
}

type SessionConfig struct {
	Enable bool   `json:"enable" yaml:"enable" mapstructure:"enable"`
	Host   string `json:"host" yaml:"host" mapstructure:"host"`
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
}

type ClientConfig struct {
	ReadMessageSizeLimit int64 `json:"read_message_size_limit" yaml:"read_message_size_limit" mapstructure:"read_message_size_limit"`
	Compression          bool  `json:"compression" yaml:"compression" mapstructure:"compression"`
	CompressionLevel     int   `json:"compression_level" yaml:"compression_level" mapstructure:"compression_level"`
	ReadBufferSize       int   `json:"read_buffer_size" yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize      int   `json:"write_buffer_size" yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	SendQueueSize        int   `json:"send_queue_size" yaml:"send_queue_size" mapstructure:"send_queue_size"`
}

func (c *ClientConfig) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 16
	}
	if c.ReadMessageSizeLimit <= 0 {
		c.ReadMessageSizeLimit = 64 * 1024
	}
}
