package metrics

import (
	"fmt"

	metrics "github.com/rcrowley/go-metrics"
)

// AdapterMetrics groups the meters tracked for one adapter code.
type AdapterMetrics struct {
	// RequestMeter counts wire requests actually issued.
	RequestMeter metrics.Meter
	// ValidBidMeter counts dispatched bids with a usable price.
	ValidBidMeter metrics.Meter
	// InvalidBidMeter counts dispatched no-bid records.
	InvalidBidMeter metrics.Meter
	// RejectedParamsMeter counts bid entries dropped at the protocol router.
	RejectedParamsMeter metrics.Meter
	// RequestTimer tracks wall time from send to dispatch.
	RequestTimer metrics.Timer
}

// NewAdapterMetrics registers the adapter meters on the given registry under
// {prefix}.{adapterCode}.
func NewAdapterMetrics(registry metrics.Registry, prefix string, adapterCode string) *AdapterMetrics {
	name := func(suffix string) string {
		return fmt.Sprintf("%s.%s.%s", prefix, adapterCode, suffix)
	}
	return &AdapterMetrics{
		RequestMeter:        metrics.GetOrRegisterMeter(name("requests"), registry),
		ValidBidMeter:       metrics.GetOrRegisterMeter(name("bids_received"), registry),
		InvalidBidMeter:     metrics.GetOrRegisterMeter(name("no_bids"), registry),
		RejectedParamsMeter: metrics.GetOrRegisterMeter(name("rejected_params"), registry),
		RequestTimer:        metrics.GetOrRegisterTimer(name("request_time"), registry),
	}
}
