package spicedb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/authzed/authzed-go/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// bearerToken attaches a preshared key to every RPC.
type bearerToken struct {
	token    string
	insecure bool
}

func (b bearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerToken) RequireTransportSecurity() bool { return !b.insecure }

// DialOptions returns the gRPC options for cfg.
func DialOptions(cfg Config) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithPerRPCCredentials(bearerToken{token: cfg.Token, insecure: cfg.Insecure}),
	}
	if cfg.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	return opts
}

// NewClient creates a SpiceDB client. The connection is established lazily.
func NewClient(cfg Config) (*authzed.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("SpiceDB endpoint is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("SpiceDB token is required")
	}

	client, err := authzed.NewClient(cfg.Endpoint, DialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SpiceDB client: %w", err)
	}
	return client, nil
}
