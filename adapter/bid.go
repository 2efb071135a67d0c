package adapter

import (
	"encoding/json"
)

// BidStatus classifies the terminal outcome of one bid slot.
type BidStatus int

const (
	// StatusValid marks a bid carrying usable markup and price.
	StatusValid BidStatus = 1
	// StatusInvalid marks a no-bid record: the slot is accounted for, but
	// nothing is renderable.
	StatusInvalid BidStatus = 2
)

// BidRequest is one incoming auction request for this adapter. Each entry in
// Bids yields at most one wire request and, if that request is sent, exactly
// one dispatched NormalizedBid.
type BidRequest struct {
	BidderCode      string     `json:"bidderCode"`
	RequestID       string     `json:"requestId"`
	BidderRequestID string     `json:"bidderRequestId"`
	Bids            []BidEntry `json:"bids"`
}

// BidEntry is one auction slot. BidID is the join key between request and
// response: it survives unchanged into the NormalizedBid on every path.
type BidEntry struct {
	Bidder          string          `json:"bidder"`
	BidID           string          `json:"bidId"`
	RequestID       string          `json:"requestId"`
	BidderRequestID string          `json:"bidderRequestId"`
	PlacementCode   string          `json:"placementCode"`
	Params          json.RawMessage `json:"params"`
}

// Price is a bid price: either a plain numeric cpm or an opaque token from
// the backend's price encryption. Encrypted tokens are carried verbatim and
// never coerced to a number.
type Price struct {
	Amount  float64
	Encoded string
}

// NumericPrice wraps a plain cpm value.
func NumericPrice(amount float64) *Price {
	return &Price{Amount: amount}
}

// EncodedPrice wraps an encrypted price token.
func EncodedPrice(token string) *Price {
	return &Price{Encoded: token}
}

// Encrypted reports whether the price is an opaque token.
func (p *Price) Encrypted() bool {
	return p.Encoded != ""
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.Encoded != "" {
		return json.Marshal(p.Encoded)
	}
	return json.Marshal(p.Amount)
}

func (p *Price) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &p.Encoded)
	}
	return json.Unmarshal(b, &p.Amount)
}

// NormalizedBid is the canonical bid record handed to the bid manager. It is
// created once per parsed response and never mutated after dispatch.
type NormalizedBid struct {
	AdID       string    `json:"adId"`
	BidderCode string    `json:"bidderCode"`
	StatusCode BidStatus `json:"statusCode"`
	Ad         string    `json:"ad,omitempty"`
	CPM        *Price    `json:"cpm,omitempty"`
	Width      uint64    `json:"width,omitempty"`
	Height     uint64    `json:"height,omitempty"`
	CreativeID string    `json:"creativeId,omitempty"`
	PubapiID   string    `json:"pubapiId,omitempty"`
	DealID     string    `json:"dealId,omitempty"`
}

// BidManager is the external auction collaborator which ingests one
// NormalizedBid per slot, keyed by the slot's placement code.
type BidManager interface {
	AddBidResponse(placementCode string, bid *NormalizedBid)
}
