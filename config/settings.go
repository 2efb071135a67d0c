package config

// CPMAdjuster rescales a numeric cpm. Publishers historically configured one
// per bidder code; the adapter itself no longer applies it and only warns
// when one is present, leaving the adjustment to the auction layer.
type CPMAdjuster func(cpm float64) float64

// BidderSettings is the per-bidder-code settings lookup consumed by the
// adapter. The adapter reads it during response handling and never mutates it.
type BidderSettings struct {
	adjusters map[string]CPMAdjuster
}

// NewBidderSettings builds an empty settings lookup.
func NewBidderSettings() *BidderSettings {
	return &BidderSettings{
		adjusters: make(map[string]CPMAdjuster),
	}
}

// SetCPMAdjustment registers a deprecated cpm adjustment hook for a bidder
// code. Intended for configuration wiring, before any auctions run.
func (s *BidderSettings) SetCPMAdjustment(bidderCode string, adjuster CPMAdjuster) {
	s.adjusters[bidderCode] = adjuster
}

// CPMAdjustment returns the adjustment hook configured for the bidder code,
// or nil when there is none.
func (s *BidderSettings) CPMAdjustment(bidderCode string) CPMAdjuster {
	if s == nil {
		return nil
	}
	return s.adjusters[bidderCode]
}
