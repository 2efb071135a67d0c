package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/adtech/rtb-adapter/config"
	"github.com/adtech/rtb-adapter/errortypes"
	"github.com/adtech/rtb-adapter/metrics"
	"github.com/adtech/rtb-adapter/transport"
	"github.com/adtech/rtb-adapter/usersync"
)

// Adapter translates generic bid entries into Marketplace (pubapi) or Nexage
// wire requests and normalizes the asynchronous responses for the bid
// manager. One Adapter is safe for concurrent bid requests: all fields are
// read-only after construction.
type Adapter struct {
	bidderCode string
	nexageHost string
	transport  transport.Sender
	manager    BidManager
	pixelSink  usersync.PixelSink
	settings   *config.BidderSettings
	metrics    *metrics.AdapterMetrics

	// warnf and now are injectable for tests.
	warnf func(format string, args ...interface{})
	now   func() time.Time
}

// New builds an Adapter. manager and sender are required collaborators;
// sink may be nil when no out-of-band pixel rendering is wired, and settings
// may be nil when no bidder settings are configured.
func New(cfg *config.Configuration, sender transport.Sender, manager BidManager, sink usersync.PixelSink, settings *config.BidderSettings, am *metrics.AdapterMetrics) *Adapter {
	if sink == nil {
		sink = usersync.NopSink{}
	}
	if am == nil {
		am = metrics.NewAdapterMetrics(gometrics.NewRegistry(), cfg.Metrics.Prefix, cfg.BidderCode)
	}
	return &Adapter{
		bidderCode: cfg.BidderCode,
		nexageHost: cfg.Nexage.Host,
		transport:  sender,
		manager:    manager,
		pixelSink:  sink,
		settings:   settings,
		metrics:    am,
		warnf:      glog.Warningf,
		now:        time.Now,
	}
}

// Name uniquely identifies this adapter to the auction layer.
func (a *Adapter) Name() string {
	return a.bidderCode
}

// CallBids routes every entry of the bid request, issues at most one wire
// request per entry, and dispatches exactly one NormalizedBid to the bid
// manager for every request actually sent. Entries whose params satisfy no
// protocol variant are dropped without a transport call or a dispatch.
//
// CallBids returns once every outstanding completion has been dispatched.
// Timeout enforcement belongs to the caller via ctx.
func (a *Adapter) CallBids(ctx context.Context, request *BidRequest) {
	a.warnOnCPMAdjustment()

	var wg sync.WaitGroup
	for i := range request.Bids {
		entry := &request.Bids[i]

		routed, err := routeParams(entry.Params)
		if err != nil {
			a.metrics.RejectedParamsMeter.Mark(1)
			glog.V(2).Infof("adapter %s: dropping bid %s: %v", a.bidderCode, entry.BidID, err)
			continue
		}

		req := a.buildRequest(routed)
		if req == nil {
			a.metrics.RejectedParamsMeter.Mark(1)
			continue
		}

		a.metrics.RequestMeter.Mark(1)
		// The timer samples wall time; the injectable clock only feeds the
		// cache buster.
		start := time.Now()
		resultCh := a.transport.Send(ctx, req)

		wg.Add(1)
		go func(entry *BidEntry, routed *routedParams) {
			defer wg.Done()
			result := <-resultCh
			bid := a.parseResponse(ctx, entry, routed, result)
			a.metrics.RequestTimer.UpdateSince(start)
			if bid.StatusCode == StatusValid {
				a.metrics.ValidBidMeter.Mark(1)
			} else {
				a.metrics.InvalidBidMeter.Mark(1)
			}
			a.manager.AddBidResponse(entry.PlacementCode, bid)
		}(entry, routed)
	}
	wg.Wait()
}

func (a *Adapter) buildRequest(routed *routedParams) *transport.Request {
	switch routed.protocol {
	case protocolMarketplace:
		return a.buildMarketplaceRequest(routed.marketplace)
	case protocolNexageGet:
		return a.buildNexageGetRequest(routed.nexageGet)
	case protocolNexagePost:
		return a.buildNexagePostRequest(routed.openRTBHost, routed.openRTB)
	}
	return nil
}

// warnOnCPMAdjustment emits one diagnostic per bid request when a deprecated
// per-bidder cpm adjustment is configured. The adjustment itself is applied
// by the auction layer, never here.
func (a *Adapter) warnOnCPMAdjustment() {
	if a.settings.CPMAdjustment(a.bidderCode) == nil {
		return
	}
	a.warnf("%v", &errortypes.Warning{
		Message:     fmt.Sprintf("bidCpmAdjustment is active for bidder %q; the adjustment is deprecated here and is applied by the auction layer", a.bidderCode),
		WarningCode: errortypes.DeprecatedBidderSettingsWarningCode,
	})
}
