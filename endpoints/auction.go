package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/adtech/rtb-adapter/adapter"
	"github.com/adtech/rtb-adapter/config"
	"github.com/adtech/rtb-adapter/metrics"
	"github.com/adtech/rtb-adapter/transport"
	"github.com/adtech/rtb-adapter/usersync"
)

// maxRequestSize caps the accepted auction request body.
const maxRequestSize = 1024 * 256

type auctionResponse struct {
	Status string                   `json:"status"`
	Bids   []*adapter.NormalizedBid `json:"bids"`
	Debug  []*bidderDebug           `json:"debug,omitempty"`
}

// bidderDebug mirrors what was put on the wire for one bid entry, surfaced
// when the caller asks for debug output.
type bidderDebug struct {
	RequestURI   string `json:"request_uri"`
	RequestBody  string `json:"request_body,omitempty"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body,omitempty"`
}

func writeAuctionError(w http.ResponseWriter, s string, err error) {
	var resp auctionResponse
	if err != nil {
		resp.Status = fmt.Sprintf("%s: %v", s, err)
	} else {
		resp.Status = s
	}
	b, err := json.Marshal(&resp)
	if err != nil {
		glog.Errorf("Failed to marshal auction error JSON: %s", err)
	} else {
		w.Write(b)
	}
}

type auction struct {
	cfg      *config.Configuration
	sender   transport.Sender
	sink     usersync.PixelSink
	settings *config.BidderSettings
	metrics  *metrics.AdapterMetrics
}

// Auction returns the handler for POST /auction. The request body is a JSON
// adapter.BidRequest; the response lists every NormalizedBid the adapter
// dispatched for it. `?debug=1` additionally echoes the wire traffic.
func Auction(cfg *config.Configuration, sender transport.Sender, sink usersync.PixelSink, settings *config.BidderSettings, am *metrics.AdapterMetrics) httprouter.Handle {
	a := &auction{
		cfg:      cfg,
		sender:   sender,
		sink:     sink,
		settings: settings,
		metrics:  am,
	}
	return a.handle
}

func (a *auction) handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	defer r.Body.Close()

	var bidRequest adapter.BidRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize)).Decode(&bidRequest); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeAuctionError(w, "Error parsing auction request", err)
		return
	}

	sender := a.sender
	var recorder *recordingSender
	if r.URL.Query().Get("debug") == "1" {
		recorder = &recordingSender{next: sender}
		sender = recorder
	}

	collector := &bidCollector{}
	bidAdapter := adapter.New(a.cfg, sender, collector, a.sink, a.settings, a.metrics)

	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.TimeoutDuration())
	defer cancel()
	bidAdapter.CallBids(ctx, &bidRequest)

	resp := auctionResponse{
		Status: "OK",
		Bids:   collector.bids(),
	}
	if recorder != nil {
		resp.Debug = recorder.records()
	}
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		glog.Errorf("Failed to encode auction response: %s", err)
	}
}

// bidCollector is a BidManager which gathers dispatched bids for the HTTP
// response. Dispatches arrive from per-entry goroutines.
type bidCollector struct {
	mu        sync.Mutex
	collected []*adapter.NormalizedBid
}

func (c *bidCollector) AddBidResponse(placementCode string, bid *adapter.NormalizedBid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collected = append(c.collected, bid)
}

func (c *bidCollector) bids() []*adapter.NormalizedBid {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*adapter.NormalizedBid, len(c.collected))
	copy(out, c.collected)
	return out
}

// recordingSender wraps a Sender and captures the wire traffic for debug output.
type recordingSender struct {
	next transport.Sender

	mu       sync.Mutex
	captured []*bidderDebug
}

func (s *recordingSender) Send(ctx context.Context, req *transport.Request) <-chan transport.Result {
	out := make(chan transport.Result, 1)
	inner := s.next.Send(ctx, req)
	go func() {
		result := <-inner
		s.mu.Lock()
		s.captured = append(s.captured, &bidderDebug{
			RequestURI:   req.URI,
			RequestBody:  string(req.Body),
			StatusCode:   result.StatusCode,
			ResponseBody: string(result.Body),
		})
		s.mu.Unlock()
		out <- result
	}()
	return out
}

func (s *recordingSender) records() []*bidderDebug {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// Status is a trivial liveness handler.
func Status(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}
