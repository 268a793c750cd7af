package otlpexport

import (
	"context"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/pmetric/pmetricotlp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/pipeline"
)

// Name is a plugin name.
const Name = "otlp"

// Config is a plugin configuration.
type Config struct {
	// Endpoint is an OTLP gRPC endpoint.
	Endpoint string
	// Timeout of single export request.
	Timeout time.Duration
	// Resource attributes of exported metrics.
	Resource map[string]string
}

func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Resource == nil {
		c.Resource = map[string]string{}
	}
	if _, ok := c.Resource["service.name"]; !ok {
		c.Resource["service.name"] = "measured"
	}
	if _, ok := c.Resource["host.name"]; !ok {
		if host, err := os.Hostname(); err == nil {
			c.Resource["host.name"] = host
		}
	}
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	for _, key := range t.Keys() {
		switch key {
		case "endpoint":
			v, ok := t.String(key)
			if !ok {
				return c, errors.Errorf("%q: string expected", key)
			}
			c.Endpoint = v
		case "timeout":
			v, _ := t.String(key)
			d, err := time.ParseDuration(v)
			if err != nil {
				return c, errors.Wrapf(err, "parse %q", key)
			}
			c.Timeout = d
		case "resource":
			res := t.Table(key)
			if res == nil {
				return c, errors.Errorf("%q: table expected", key)
			}
			c.Resource = map[string]string{}
			for _, k := range res.Keys() {
				v, ok := res.String(k)
				if !ok {
					return c, errors.Errorf("%q: string value expected for %q", key, k)
				}
				c.Resource[k] = v
			}
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	c.setDefaults()
	return c, nil
}

// Plugin registers OTLP output.
type Plugin struct{}

var _ pipeline.Plugin = Plugin{}

// Name implements [pipeline.Plugin].
func (Plugin) Name() string { return Name }

// Init implements [pipeline.Plugin].
func (Plugin) Init(s *pipeline.Startup, cfg *configtree.Table) error {
	c, err := ParseConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	conn, err := grpc.NewClient(c.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler(
			otelgrpc.WithTracerProvider(s.TracerProvider()),
			otelgrpc.WithMeterProvider(s.MeterProvider()),
		)),
	)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	next, err := newGRPCConsumer(pmetricotlp.NewGRPCClient(conn), c.Timeout)
	if err != nil {
		_ = conn.Close()
		return err
	}
	s.Logger().Info("Exporting metrics", zap.String("endpoint", c.Endpoint))
	s.AddOutput("grpc", &grpcOutput{
		Exporter: NewExporter(next, Options{Resource: c.Resource}),
		conn:     conn,
	})
	return nil
}

type grpcOutput struct {
	*Exporter
	conn *grpc.ClientConn
}

// Drop closes gRPC connection.
func (o *grpcOutput) Drop() error {
	return o.conn.Close()
}

func newGRPCConsumer(client pmetricotlp.GRPCClient, timeout time.Duration) (consumer.Metrics, error) {
	c, err := consumer.NewMetrics(func(ctx context.Context, md pmetric.Metrics) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := client.Export(ctx, pmetricotlp.NewExportRequestFromMetrics(md))
		if err != nil {
			switch status.Code(err) {
			case codes.InvalidArgument, codes.Unimplemented, codes.Unauthenticated, codes.PermissionDenied:
				return backoff.Permanent(err)
			default:
				return err
			}
		}
		if ps := resp.PartialSuccess(); ps.RejectedDataPoints() > 0 {
			return backoff.Permanent(errors.Errorf("%d data points rejected: %s",
				ps.RejectedDataPoints(), ps.ErrorMessage(),
			))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create consumer")
	}
	return c, nil
}
