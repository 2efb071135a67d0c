package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang/glog"

	"github.com/adtech/rtb-adapter/errortypes"
	"github.com/adtech/rtb-adapter/transport"
	"github.com/adtech/rtb-adapter/usersync"
)

// Wire shape of the backend JSON. Both protocols answer in this shape; it is
// OpenRTB-like but carries pubapi extensions (encrypted price, sync pixels),
// so the structs live here instead of reusing the generic OpenRTB types.
type bidResponse struct {
	ID      string          `json:"id"`
	Cur     string          `json:"cur"`
	SeatBid []seatBid       `json:"seatbid"`
	Ext     *bidResponseExt `json:"ext"`
}

type seatBid struct {
	Bid []seatBidBid `json:"bid"`
}

type seatBidBid struct {
	ID     string      `json:"id"`
	ImpID  string      `json:"impid"`
	Price  *float64    `json:"price"`
	AdM    string      `json:"adm"`
	CrID   string      `json:"crid"`
	W      uint64      `json:"w"`
	H      uint64      `json:"h"`
	DealID string      `json:"dealid"`
	Ext    *seatBidExt `json:"ext"`
}

type seatBidExt struct {
	SizeID json.Number `json:"sizeid"`
	// EncP is the encrypted price token. When present it IS the cpm, carried
	// verbatim; the numeric price field is ignored.
	EncP string `json:"encp"`
}

type bidResponseExt struct {
	Pixels string `json:"pixels"`
}

// parseResponse classifies one transport result into exactly one
// NormalizedBid. AdID always equals the originating entry's BidID so the bid
// manager can correlate the record on every path, valid or not.
func (a *Adapter) parseResponse(ctx context.Context, entry *BidEntry, routed *routedParams, result transport.Result) *NormalizedBid {
	invalid := &NormalizedBid{
		AdID:       entry.BidID,
		BidderCode: a.bidderCode,
		StatusCode: StatusInvalid,
	}

	if err := responseFailure(ctx, result); err != nil {
		a.logInvalid(entry, err)
		return invalid
	}

	var resp bidResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		a.logInvalid(entry, &errortypes.BadServerResponse{
			Message: "malformed response body: " + err.Error(),
		})
		return invalid
	}

	bid := firstBid(&resp)
	if bid == nil {
		a.logInvalid(entry, &errortypes.BadServerResponse{
			Message: "response carries no seatbid/bid entries",
		})
		return invalid
	}

	cpm := bidPrice(bid)
	if cpm == nil {
		// A bid object with no usable price is still a no-bid.
		a.logInvalid(entry, &errortypes.BadServerResponse{
			Message: "bid carries neither a price nor an encrypted price token",
		})
		return invalid
	}

	normalized := &NormalizedBid{
		AdID:       entry.BidID,
		BidderCode: a.bidderCode,
		StatusCode: StatusValid,
		Ad:         bid.AdM,
		CPM:        cpm,
		Width:      bid.W,
		Height:     bid.H,
		CreativeID: bid.CrID,
		PubapiID:   resp.ID,
		DealID:     bid.DealID,
	}

	if resp.Ext != nil && resp.Ext.Pixels != "" {
		if routed.syncPixelsOutOfBand() {
			a.pixelSink.RenderPixels(usersync.ParsePixelURLs(resp.Ext.Pixels))
		} else {
			normalized.Ad += resp.Ext.Pixels
		}
	}

	return normalized
}

// responseFailure classifies why a transport result carries no parseable
// body, or returns nil when the body is usable. Transport errors under an
// expired context count as timeouts; everything else the backend answered
// with is a bad server response.
func responseFailure(ctx context.Context, result transport.Result) error {
	if result.Err != nil {
		if ctx.Err() != nil {
			return &errortypes.Timeout{
				Message: fmt.Sprintf("transport timed out: %v", result.Err),
			}
		}
		return &errortypes.FailedToRequestBids{
			Message: fmt.Sprintf("transport failed: %v", result.Err),
		}
	}
	if result.StatusCode != http.StatusOK {
		return &errortypes.BadServerResponse{
			Message: fmt.Sprintf("unexpected status code: %d", result.StatusCode),
		}
	}
	if len(result.Body) == 0 {
		return &errortypes.BadServerResponse{Message: "empty response body"}
	}
	return nil
}

func (a *Adapter) logInvalid(entry *BidEntry, reason error) {
	glog.V(2).Infof("adapter %s: dispatching invalid bid %s (code %d): %v",
		a.bidderCode, entry.BidID, errortypes.ReadCode(reason), reason)
}

// firstBid returns the first bid object of the response, or nil when no
// seatbid carries one.
func firstBid(resp *bidResponse) *seatBidBid {
	for i := range resp.SeatBid {
		if len(resp.SeatBid[i].Bid) > 0 {
			return &resp.SeatBid[i].Bid[0]
		}
	}
	return nil
}

// bidPrice applies the price precedence: an encrypted token wins over the
// numeric price; neither present means no usable price.
func bidPrice(bid *seatBidBid) *Price {
	if bid.Ext != nil && bid.Ext.EncP != "" {
		return EncodedPrice(bid.Ext.EncP)
	}
	if bid.Price != nil {
		return NumericPrice(*bid.Price)
	}
	return nil
}
