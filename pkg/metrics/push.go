package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends every collector in m to a Prometheus Pushgateway under job.
// One-shot commands use it since nothing scrapes them.
func (m *Metrics) Push(ctx context.Context, gateway, job string) error {
	if err := push.New(gateway, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gateway, err)
	}
	return nil
}
