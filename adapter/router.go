package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/mxmCherry/openrtb"

	"github.com/adtech/rtb-adapter/errortypes"
)

type protocol int

const (
	protocolNone protocol = iota
	protocolMarketplace
	protocolNexageGet
	protocolNexagePost
)

// userSyncOnBidResponse is the userSyncOn value which routes sync pixels to
// the pixel sink instead of inlining them into the ad markup.
const userSyncOnBidResponse = "bidResponse"

// MarketplaceParams are the bid params of the Marketplace (pubapi) variant.
// Placement and Network are required; everything else has a default.
type MarketplaceParams struct {
	Placement  json.Number `json:"placement"`
	Network    string      `json:"network"`
	Region     string      `json:"region,omitempty"`
	Server     string      `json:"server,omitempty"`
	PageID     *int64      `json:"pageId,omitempty"`
	SizeID     *int64      `json:"sizeId,omitempty"`
	Alias      string      `json:"alias,omitempty"`
	BidFloor   *float64    `json:"bidFloor,omitempty"`
	UserSyncOn string      `json:"userSyncOn,omitempty"`
}

// NexageGetParams are the bid params of the Nexage query-string variant.
// Ext pairs keep the order in which they appear in the params document.
type NexageGetParams struct {
	DCN  string
	Pos  string
	Host string
	Ext  []ExtPair
}

// ExtPair is one pass-through query parameter of the Nexage GET form.
type ExtPair struct {
	Key   string
	Value string
}

// routedParams is the narrowed protocol variant produced by routeParams.
// Exactly one of the variant fields is set, matching the protocol tag.
type routedParams struct {
	protocol    protocol
	marketplace *MarketplaceParams
	nexageGet   *NexageGetParams
	openRTB     json.RawMessage // Nexage POST body, sent verbatim
	openRTBHost string          // top-level host param of the POST form
}

func (r *routedParams) syncPixelsOutOfBand() bool {
	return r.marketplace != nil && r.marketplace.UserSyncOn == userSyncOnBidResponse
}

// routeParams inspects one bid entry's params and narrows them to a protocol
// variant. It is pure: no side effects, no defaults applied yet. Params which
// satisfy no variant are rejected with a BadInput error.
func routeParams(params json.RawMessage) (*routedParams, error) {
	if len(params) == 0 {
		return nil, &errortypes.BadInput{Message: "no params supplied"}
	}

	switch {
	case hasMarketplaceParams(params):
		return routeMarketplace(params)
	case hasNexageGetParams(params):
		return routeNexageGet(params)
	case hasNexagePostParams(params):
		return routeNexagePost(params)
	}

	return nil, &errortypes.BadInput{
		Message: "params match no supported protocol: need placement+network, dcn+pos, or id+imp",
	}
}

func hasMarketplaceParams(params []byte) bool {
	_, dataType, _, err := jsonparser.Get(params, "placement")
	if err != nil || dataType != jsonparser.Number {
		return false
	}
	network, err := jsonparser.GetString(params, "network")
	return err == nil && network != ""
}

func hasNexageGetParams(params []byte) bool {
	dcn, err := jsonparser.GetString(params, "dcn")
	if err != nil || dcn == "" {
		return false
	}
	pos, err := jsonparser.GetString(params, "pos")
	return err == nil && pos != ""
}

func hasNexagePostParams(params []byte) bool {
	if _, err := jsonparser.GetString(params, "id"); err != nil {
		return false
	}
	_, dataType, _, err := jsonparser.Get(params, "imp")
	return err == nil && dataType == jsonparser.Array
}

func routeMarketplace(params []byte) (*routedParams, error) {
	var mp MarketplaceParams
	if err := json.Unmarshal(params, &mp); err != nil {
		return nil, &errortypes.BadInput{Message: "malformed marketplace params: " + err.Error()}
	}
	return &routedParams{
		protocol:    protocolMarketplace,
		marketplace: &mp,
	}, nil
}

func routeNexageGet(params []byte) (*routedParams, error) {
	dcn, _ := jsonparser.GetString(params, "dcn")
	pos, _ := jsonparser.GetString(params, "pos")
	host, _ := jsonparser.GetString(params, "host")

	ngp := &NexageGetParams{
		DCN:  dcn,
		Pos:  pos,
		Host: host,
	}

	// jsonparser walks the object in document order, which is the insertion
	// order the wire format requires for the ext pass-through pairs.
	err := jsonparser.ObjectEach(params, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		pairValue := string(value)
		if dataType == jsonparser.String {
			parsed, parseErr := jsonparser.ParseString(value)
			if parseErr != nil {
				return parseErr
			}
			pairValue = parsed
		}
		ngp.Ext = append(ngp.Ext, ExtPair{Key: string(key), Value: pairValue})
		return nil
	}, "ext")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, &errortypes.BadInput{Message: "malformed nexage ext params: " + err.Error()}
	}

	return &routedParams{
		protocol:  protocolNexageGet,
		nexageGet: ngp,
	}, nil
}

func routeNexagePost(params []byte) (*routedParams, error) {
	var ortbRequest openrtb.BidRequest
	if err := json.Unmarshal(params, &ortbRequest); err != nil {
		return nil, &errortypes.BadInput{Message: "malformed openrtb params: " + err.Error()}
	}
	if len(ortbRequest.Imp) == 0 {
		return nil, &errortypes.BadInput{Message: "openrtb params carry no impressions"}
	}
	for i, imp := range ortbRequest.Imp {
		if imp.ID == "" {
			return nil, &errortypes.BadInput{
				Message: fmt.Sprintf("openrtb imp[%d] is missing the required id", i),
			}
		}
	}

	// A top-level host param overrides the configured nexage host, same as
	// the query-string form. It stays in the body: the bytes go out verbatim.
	host, _ := jsonparser.GetString(params, "host")

	return &routedParams{
		protocol:    protocolNexagePost,
		openRTB:     params,
		openRTBHost: host,
	}, nil
}
