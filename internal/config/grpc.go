package config

import (
	"fmt"
	"net"
	"time"
)

// GRPCConfig configures the Evaluator gRPC server of the data plane.
type GRPCConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"50051"`

	MaxConcurrentStreams uint32 `envconfig:"MAX_CONCURRENT_STREAMS" default:"100" validate:"min=1"`
	// MaxRecvMsgBytes caps one request. Contexts are a handful of attributes,
	// so the grpc default of 4MB is far more than a caller needs.
	MaxRecvMsgBytes int `envconfig:"MAX_RECV_MSG_BYTES" default:"1048576" validate:"min=1024"`

	KeepaliveTime    time.Duration `envconfig:"KEEPALIVE_TIME" default:"120s" validate:"gt=0"`
	KeepaliveTimeout time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s" validate:"gt=0"`
	MaxConnectionAge time.Duration `envconfig:"MAX_CONNECTION_AGE" default:"300s" validate:"min=0"`
}

// Address is the listen address in host:port form.
func (c *GRPCConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate checks the listen address and the keepalive window.
func (c *GRPCConfig) Validate() error {
	if err := validateHost(c.Host, "grpc"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "grpc"); err != nil {
		return err
	}
	if c.KeepaliveTimeout >= c.KeepaliveTime {
		return fmt.Errorf("grpc keepalive timeout (%s) must be shorter than keepalive time (%s)",
			c.KeepaliveTimeout, c.KeepaliveTime)
	}
	return nil
}
