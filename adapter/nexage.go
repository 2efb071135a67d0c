package adapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/adtech/rtb-adapter/transport"
)

const (
	openRTBVersionHeader = "x-openrtb-version"
	openRTBVersion       = "2.2"
)

// buildNexageGetRequest renders the Nexage query-string form:
//
//	https://{host}/bidRequest?dcn={dcn}&pos={pos}&cmd=bid[&{ext pairs}]
//
// The configured nexage host is the default; a host param overrides it
// verbatim. Ext pairs pass through unescaped, in params document order.
func (a *Adapter) buildNexageGetRequest(p *NexageGetParams) *transport.Request {
	host := p.Host
	if host == "" {
		host = a.nexageHost
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "https://%s/bidRequest?dcn=%s&pos=%s&cmd=bid", host, p.DCN, p.Pos)
	for _, pair := range p.Ext {
		fmt.Fprintf(&sb, "&%s=%s", pair.Key, pair.Value)
	}

	return &transport.Request{
		Method: "GET",
		URI:    sb.String(),
	}
}

// buildNexagePostRequest sends the already OpenRTB-shaped params verbatim as
// the POST body, flagged with the OpenRTB protocol version header. Host
// resolution matches the GET form: a host param overrides the configured
// nexage host.
func (a *Adapter) buildNexagePostRequest(host string, body []byte) *transport.Request {
	if host == "" {
		host = a.nexageHost
	}

	headers := http.Header{}
	headers.Add("Content-Type", "application/json;charset=utf-8")
	headers.Add("Accept", "application/json")
	headers.Add(openRTBVersionHeader, openRTBVersion)

	return &transport.Request{
		Method:  "POST",
		URI:     fmt.Sprintf("https://%s/bidRequest", host),
		Body:    body,
		Headers: headers,
	}
}
