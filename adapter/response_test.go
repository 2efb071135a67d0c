package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/rtb-adapter/errortypes"
	"github.com/adtech/rtb-adapter/transport"
)

func mustRoute(t *testing.T, paramsJSON string) *routedParams {
	t.Helper()
	routed, err := routeParams(json.RawMessage(paramsJSON))
	require.NoError(t, err)
	return routed
}

func parse(t *testing.T, paramsJSON string, result transport.Result) *NormalizedBid {
	t.Helper()
	a := newTestAdapter(&fakeSender{}, &fakeManager{})
	entry := marketplaceEntry("84ab500420319d", paramsJSON)
	return a.parseResponse(context.Background(), &entry, mustRoute(t, paramsJSON), result)
}

func TestParseResponseInvalidCases(t *testing.T) {
	tests := []struct {
		description string
		result      transport.Result
	}{
		{"transport failure", transport.Result{Err: fmt.Errorf("dial tcp: timeout")}},
		{"http error status", transport.Result{StatusCode: http.StatusInternalServerError, Body: []byte(`{}`)}},
		{"empty body", transport.Result{StatusCode: http.StatusOK}},
		{"malformed body", transport.Result{StatusCode: http.StatusOK, Body: []byte(`<html>nope</html>`)}},
		{"absent seatbid", transport.Result{StatusCode: http.StatusOK, Body: []byte(`{"id":"x","cur":"USD"}`)}},
		{"empty seatbid", transport.Result{StatusCode: http.StatusOK, Body: []byte(`{"id":"x","seatbid":[]}`)}},
		{"seatbid without bids", transport.Result{StatusCode: http.StatusOK, Body: []byte(`{"id":"x","seatbid":[{"bid":[]}]}`)}},
		{"bid without any price", transport.Result{StatusCode: http.StatusOK,
			Body: []byte(`{"id":"x","seatbid":[{"bid":[{"id":"1","impid":"x","adm":"<div></div>","crid":"1"}]}]}`)}},
	}

	for _, test := range tests {
		bid := parse(t, validMarketplaceParams, test.result)
		assert.Equal(t, StatusInvalid, bid.StatusCode, test.description)
		assert.Equal(t, "84ab500420319d", bid.AdID, test.description)
		assert.Equal(t, "aol", bid.BidderCode, test.description)
		assert.Nil(t, bid.CPM, test.description)
		assert.Empty(t, bid.Ad, test.description)
	}
}

func TestResponseFailureClassification(t *testing.T) {
	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		description string
		ctx         context.Context
		result      transport.Result
		code        int
	}{
		{
			description: "transport error with live context",
			ctx:         context.Background(),
			result:      transport.Result{Err: fmt.Errorf("connection refused")},
			code:        errortypes.FailedToRequestBidsErrorCode,
		},
		{
			description: "transport error with expired context",
			ctx:         canceledCtx,
			result:      transport.Result{Err: fmt.Errorf("context canceled")},
			code:        errortypes.TimeoutErrorCode,
		},
		{
			description: "non-200 status",
			ctx:         context.Background(),
			result:      transport.Result{StatusCode: http.StatusBadGateway, Body: []byte(`{}`)},
			code:        errortypes.BadServerResponseErrorCode,
		},
		{
			description: "empty body",
			ctx:         context.Background(),
			result:      transport.Result{StatusCode: http.StatusOK},
			code:        errortypes.BadServerResponseErrorCode,
		},
	}

	for _, test := range tests {
		err := responseFailure(test.ctx, test.result)
		require.Error(t, err, test.description)
		assert.Equal(t, test.code, errortypes.ReadCode(err), test.description)
		assert.True(t, errortypes.IsFatal(err), test.description)
	}

	assert.NoError(t, responseFailure(context.Background(), transport.Result{StatusCode: http.StatusOK, Body: []byte(`{}`)}))
}

func TestParseResponseValidBid(t *testing.T) {
	body := `{
		"id": "245730051428950632",
		"cur": "USD",
		"seatbid": [{
			"bid": [{
				"id": "1",
				"impid": "245730051428950632",
				"price": 0.09,
				"adm": "<script>logInfo('ad');</script>",
				"crid": "12345",
				"h": 90,
				"w": 728,
				"ext": {"sizeid": 225}
			}]
		}]
	}`

	bid := parse(t, validMarketplaceParams, transport.Result{StatusCode: http.StatusOK, Body: []byte(body)})

	assert.Equal(t, StatusValid, bid.StatusCode)
	assert.Equal(t, "84ab500420319d", bid.AdID)
	assert.Equal(t, "aol", bid.BidderCode)
	assert.Equal(t, "<script>logInfo('ad');</script>", bid.Ad)
	assert.Equal(t, uint64(728), bid.Width)
	assert.Equal(t, uint64(90), bid.Height)
	assert.Equal(t, "12345", bid.CreativeID)
	assert.Equal(t, "245730051428950632", bid.PubapiID)
	assert.Empty(t, bid.DealID)
	require.NotNil(t, bid.CPM)
	assert.False(t, bid.CPM.Encrypted())
	assert.Equal(t, 0.09, bid.CPM.Amount)
}

func TestParseResponseEncryptedPriceWinsOverNumeric(t *testing.T) {
	body := `{
		"id": "245730051428950632",
		"seatbid": [{
			"bid": [{
				"id": "1",
				"impid": "245730051428950632",
				"price": 0.09,
				"adm": "<div>ad</div>",
				"crid": "12345",
				"h": 90,
				"w": 728,
				"ext": {"sizeid": 225, "encp": "a9334987"}
			}]
		}]
	}`

	bid := parse(t, validMarketplaceParams, transport.Result{StatusCode: http.StatusOK, Body: []byte(body)})

	require.NotNil(t, bid.CPM)
	assert.True(t, bid.CPM.Encrypted())
	assert.Equal(t, "a9334987", bid.CPM.Encoded)

	encoded, err := json.Marshal(bid.CPM)
	require.NoError(t, err)
	assert.Equal(t, `"a9334987"`, string(encoded))
}

func TestParseResponseEncryptedPriceAloneIsUsable(t *testing.T) {
	body := `{"id":"x","seatbid":[{"bid":[{"id":"1","impid":"x","adm":"<div></div>","crid":"1","ext":{"encp":"a9334987"}}]}]}`
	bid := parse(t, validMarketplaceParams, transport.Result{StatusCode: http.StatusOK, Body: []byte(body)})

	assert.Equal(t, StatusValid, bid.StatusCode)
	require.NotNil(t, bid.CPM)
	assert.Equal(t, "a9334987", bid.CPM.Encoded)
}

func TestParseResponseZeroPriceIsUsable(t *testing.T) {
	body := `{"id":"x","seatbid":[{"bid":[{"id":"1","impid":"x","price":0,"adm":"<div></div>","crid":"1"}]}]}`
	bid := parse(t, validMarketplaceParams, transport.Result{StatusCode: http.StatusOK, Body: []byte(body)})

	assert.Equal(t, StatusValid, bid.StatusCode)
	require.NotNil(t, bid.CPM)
	assert.Zero(t, bid.CPM.Amount)
}

func TestParseResponseDealID(t *testing.T) {
	body := `{"id":"x","seatbid":[{"bid":[{"id":"1","impid":"x","price":0.5,"adm":"<div></div>","crid":"1","dealid":"deal-55"}]}]}`
	bid := parse(t, validMarketplaceParams, transport.Result{StatusCode: http.StatusOK, Body: []byte(body)})
	assert.Equal(t, "deal-55", bid.DealID)
}

const pixelsMarkup = `<script>document.write('<img src="http://idsync.example.com/pixel?id=1">');</script>`

func pixelsBody() string {
	encodedPixels, _ := json.Marshal(pixelsMarkup)
	return fmt.Sprintf(`{"id":"x","seatbid":[{"bid":[{"id":"1","impid":"x","price":0.5,"adm":"<div>ad</div>","crid":"1"}]}],"ext":{"pixels":%s}}`, encodedPixels)
}

func TestParseResponseConcatenatesPixelsByDefault(t *testing.T) {
	bid := parse(t, validMarketplaceParams, transport.Result{StatusCode: http.StatusOK, Body: []byte(pixelsBody())})

	assert.Equal(t, StatusValid, bid.StatusCode)
	assert.Equal(t, "<div>ad</div>"+pixelsMarkup, bid.Ad)
}

func TestParseResponseRoutesPixelsToSinkWhenSyncingOnBidResponse(t *testing.T) {
	sink := &fakeSink{}
	a := New(testConfig(), &fakeSender{}, &fakeManager{}, sink, nil, nil)

	params := `{"placement":1234567,"network":"9599.1","userSyncOn":"bidResponse"}`
	entry := marketplaceEntry("84ab500420319d", params)
	bid := a.parseResponse(context.Background(), &entry, mustRoute(t, params), transport.Result{StatusCode: http.StatusOK, Body: []byte(pixelsBody())})

	// Pixel markup stays out of the ad; the sink gets the bare URLs.
	assert.Equal(t, "<div>ad</div>", bid.Ad)
	rendered := sink.renderedPixels()
	require.Len(t, rendered, 1)
	assert.Equal(t, []string{"http://idsync.example.com/pixel?id=1"}, rendered[0])
}

func TestParseResponseNexagePathAlwaysConcatenatesPixels(t *testing.T) {
	params := `{"dcn":"2c9d2b50015c5ce9db6aeeed8b9500d6","pos":"header"}`
	sink := &fakeSink{}
	a := New(testConfig(), &fakeSender{}, &fakeManager{}, sink, nil, nil)

	entry := BidEntry{BidID: "bid-9", PlacementCode: "footer", Params: json.RawMessage(params)}
	bid := a.parseResponse(context.Background(), &entry, mustRoute(t, params), transport.Result{StatusCode: http.StatusOK, Body: []byte(pixelsBody())})

	assert.Equal(t, "<div>ad</div>"+pixelsMarkup, bid.Ad)
	assert.Empty(t, sink.renderedPixels())
}
