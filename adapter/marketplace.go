package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/adtech/rtb-adapter/transport"
)

// marketplaceHosts maps a region param to the pubapi ad server host.
var marketplaceHosts = map[string]string{
	"us": "adserver-us.adtech.advertising.com",
	"eu": "adserver-eu.adtech.advertising.com",
	"as": "adserver-as.adtech.advertising.com",
}

// marketplaceDefaultRegion absorbs absent or unrecognized region values, so
// an operator typo degrades to the us ad server instead of a dead request.
const marketplaceDefaultRegion = "us"

// buildMarketplaceRequest renders the pubapi GET URL:
//
//	https://{host}/pubapi/3.0/{network}/{placement}/{pageId}/{sizeId}/ADTECH;v=2;cmd=bid;alias={alias};misc={n};[bidfloor={f};]
//
// pageId and sizeId always render, defaulting to 0. alias is generated when
// absent. misc is a time-based cache buster present on every request.
func (a *Adapter) buildMarketplaceRequest(p *MarketplaceParams) *transport.Request {
	host := p.Server
	if host == "" {
		host = marketplaceHosts[p.Region]
		if host == "" {
			host = marketplaceHosts[marketplaceDefaultRegion]
		}
	}

	alias := p.Alias
	if alias == "" {
		alias = generateAlias()
	}

	var pageID, sizeID int64
	if p.PageID != nil {
		pageID = *p.PageID
	}
	if p.SizeID != nil {
		sizeID = *p.SizeID
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "https://%s/pubapi/3.0/%s/%s/%d/%d/ADTECH;v=2;cmd=bid;alias=%s;misc=%d;",
		host, p.Network, p.Placement.String(), pageID, sizeID, alias, a.cacheBuster())
	if p.BidFloor != nil {
		fmt.Fprintf(&sb, "bidfloor=%s;", strconv.FormatFloat(*p.BidFloor, 'f', -1, 64))
	}

	return &transport.Request{
		Method: "GET",
		URI:    sb.String(),
	}
}

// cacheBuster returns a monotonically-varying numeric token to defeat
// HTTP-level caching of the pubapi GET.
func (a *Adapter) cacheBuster() int64 {
	return a.now().UnixNano() / int64(time.Millisecond)
}

// generateAlias produces a non-empty \w+ token for requests whose params
// carry no alias, so the query string always contains an alias= term.
func generateAlias() string {
	id, err := uuid.NewV4()
	if err != nil {
		// rand exhaustion is effectively unreachable; keep the invariant anyway.
		return "alias"
	}
	return strings.Replace(id.String(), "-", "", -1)
}
