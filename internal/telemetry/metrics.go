// Package telemetry emits operational metrics to CloudWatch. Metrics are
// strictly best-effort: a failed put is logged and never affects request
// handling.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"expanse/internal/config"
)

// Metric names.
const (
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"
	MetricPriceCacheRead  = "PriceCacheRead"
	MetricPriceFetch      = "PriceFetch"
)

// Collector records API and pricing telemetry.
type Collector interface {
	// RecordRequest records request latency and count for an endpoint.
	RecordRequest(method, endpoint, status string, duration time.Duration)

	// RecordCacheRead records whether a price read was served from cache.
	RecordCacheRead(hit bool)

	// RecordPriceFetch records the plan count yielded by an upstream fetch.
	// A zero count indicates a degraded (empty-mapping) fetch.
	RecordPriceFetch(plans int)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// putTimeout bounds each best-effort metric put.
const putTimeout = 2 * time.Second

// CloudWatchCollector implements Collector by publishing to a CloudWatch
// namespace.
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchCollector builds a collector from the ambient AWS
// configuration chain (env, shared config, instance role).
func NewCloudWatchCollector(ctx context.Context, obs config.ObservabilityConfig, logger *slog.Logger) (*CloudWatchCollector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(obs.AWSRegion))
	if err != nil {
		return nil, err
	}
	return NewCloudWatchCollectorWithClient(cloudwatch.NewFromConfig(awsCfg), obs.MetricNamespace, logger), nil
}

// NewCloudWatchCollectorWithClient creates a collector with a caller-supplied
// CloudWatch client. This constructor exists for testing.
func NewCloudWatchCollectorWithClient(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRequest emits latency and count metrics with Method/Endpoint/Status
// dimensions.
func (c *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String("Method"), Value: aws.String(method)},
		{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	c.put([]cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	})
}

// RecordCacheRead emits a PriceCacheRead count with a Result dimension of
// "hit" or "miss".
func (c *CloudWatchCollector) RecordCacheRead(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.put([]cwtypes.MetricDatum{{
		MetricName: aws.String(MetricPriceCacheRead),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("Result"), Value: aws.String(result)},
		},
	}})
}

// RecordPriceFetch emits the plan count produced by an upstream fetch.
func (c *CloudWatchCollector) RecordPriceFetch(plans int) {
	c.put([]cwtypes.MetricDatum{{
		MetricName: aws.String(MetricPriceFetch),
		Value:      aws.Float64(float64(plans)),
		Unit:       cwtypes.StandardUnitCount,
	}})
}

func (c *CloudWatchCollector) put(data []cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	}
	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Warn("failed to put metric data", "error", err)
	}
}

// NoopCollector discards all metrics. Used when metrics are disabled or the
// AWS configuration chain is unavailable.
type NoopCollector struct{}

func (NoopCollector) RecordRequest(_, _, _ string, _ time.Duration) {}
func (NoopCollector) RecordCacheRead(_ bool)                        {}
func (NoopCollector) RecordPriceFetch(_ int)                        {}

// Compile-time assertions.
var (
	_ Collector = (*CloudWatchCollector)(nil)
	_ Collector = NoopCollector{}
)
