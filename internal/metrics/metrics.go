package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Memory Metrics
	MemoryAllocatedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpumem_allocated_bytes",
		Help: "Bytes currently allocated per memory space",
	}, []string{"space"})

	AllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_allocations_total",
		Help: "Total number of native allocations per memory space",
	}, []string{"space"})

	FreesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_frees_total",
		Help: "Total number of native frees per memory space",
	}, []string{"space"})

	CopiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_copies_total",
		Help: "Total number of memory copies by direction",
	}, []string{"direction"})

	CopiedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_copied_bytes_total",
		Help: "Total bytes copied by direction",
	}, []string{"direction"})

	// Stream Metrics
	StreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpumem_streams_active",
		Help: "Number of live streams",
	})

	StreamCallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpumem_stream_callbacks_total",
		Help: "Total number of host callbacks enqueued on streams",
	})

	KernelLaunchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpumem_kernel_launches_total",
		Help: "Total number of kernel launches",
	})
)

// Memory space label values.
const (
	SpaceDevice  = "device"
	SpaceUnified = "unified"
	SpaceLocked  = "locked"
)
