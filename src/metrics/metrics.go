package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide counters.
type Metrics struct {
	ChatTurns        prometheus.Counter
	StreamFragments  prometheus.Counter
	ProviderErrors   *prometheus.CounterVec
	ToolCalls        prometheus.Counter
	ToolErrors       prometheus.Counter
	CatalogRefreshes prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

// Global returns the registered singleton.
func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ChatTurns: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ygui",
				Name:      "chat_turns_total",
				Help:      "Total chat turns processed",
			}),
			StreamFragments: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ygui",
				Name:      "stream_fragments_total",
				Help:      "Total streamed response fragments relayed",
			}),
			ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ygui",
				Name:      "provider_errors_total",
				Help:      "Total provider errors by kind",
			}, []string{"kind"}),
			ToolCalls: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ygui",
				Name:      "tool_calls_total",
				Help:      "Total MCP tool executions attempted",
			}),
			ToolErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ygui",
				Name:      "tool_errors_total",
				Help:      "Total MCP tool executions that failed",
			}),
			CatalogRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ygui",
				Name:      "catalog_refreshes_total",
				Help:      "Total MCP tool catalog cache writes",
			}),
		}
		prometheus.MustRegister(
			global.ChatTurns,
			global.StreamFragments,
			global.ProviderErrors,
			global.ToolCalls,
			global.ToolErrors,
			global.CatalogRefreshes,
		)
	})
	return global
}
