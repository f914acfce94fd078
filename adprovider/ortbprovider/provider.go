// Package ortbprovider loads native ads from an OpenRTB 2.x auction endpoint such as
// Prebid Server's /openrtb2/auction.
package ortbprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/buger/jsonparser"
	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/config"
	"github.com/monsterutils/adrefresh/errortypes"
	"github.com/monsterutils/adrefresh/storelink"
	"github.com/prebid/openrtb/v20/native1"
	nativeRequests "github.com/prebid/openrtb/v20/native1/request"
	nativeResponse "github.com/prebid/openrtb/v20/native1/response"
	"github.com/prebid/openrtb/v20/openrtb2"
	"golang.org/x/net/context/ctxhttp"
)

// Asset ids of the native request. Response assets are matched back by id.
const (
	assetTitle     int64 = 1
	assetIcon      int64 = 2
	assetCTA       int64 = 3
	assetSponsored int64 = 4
)

const nativeVersion = "1.2"

// defaultAdapterName is reported by Initialize when no adapters are configured.
const defaultAdapterName = "ortb"

// Provider is the OpenRTB implementation of adprovider.Provider.
type Provider struct {
	cfg        config.Provider
	httpClient *http.Client
	clock      clock.Clock
	images     *imageCache
	trackers   *trackerClient
	opener     storelink.Opener
}

// New builds a Provider. Landing pages of clicked ads are opened with opener.
func New(cfg config.Provider, opener storelink.Opener) *Provider {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 65 * time.Second,
		},
	}
	return NewWithClient(cfg, httpClient, clock.New(), opener)
}

// NewWithClient builds a Provider on an existing http.Client and clock.
func NewWithClient(cfg config.Provider, httpClient *http.Client, clk clock.Clock, opener storelink.Opener) *Provider {
	if opener == nil {
		opener = storelink.LogOpener{}
	}
	return &Provider{
		cfg:        cfg,
		httpClient: httpClient,
		clock:      clk,
		images:     newImageCache(httpClient, cfg.ImageCacheSizeBytes, cfg.ImageCacheTTLSecs),
		trackers:   &trackerClient{httpClient: httpClient, timeout: cfg.Timeout()},
		opener:     opener,
	}
}

func (p *Provider) adapters() []string {
	if len(p.cfg.Adapters) == 0 {
		return []string{defaultAdapterName}
	}
	return p.cfg.Adapters
}

// Initialize checks the status endpoint once and reports every adapter with the result.
func (p *Provider) Initialize(ctx context.Context, done func(adprovider.InitializationStatus)) {
	go func() {
		start := p.clock.Now()
		state, description := p.checkStatus(ctx)
		latency := p.clock.Since(start)

		status := make(adprovider.InitializationStatus, len(p.adapters()))
		for _, name := range p.adapters() {
			status[name] = adprovider.AdapterStatus{
				State:       state,
				Description: description,
				Latency:     latency,
			}
		}
		done(status)
	}()
}

func (p *Provider) checkStatus(ctx context.Context) (adprovider.AdapterState, string) {
	if p.cfg.StatusEndpoint == "" {
		return adprovider.AdapterReady, "No status endpoint configured"
	}
	if timeout := p.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := ctxhttp.Get(ctx, p.httpClient, p.cfg.StatusEndpoint)
	if err != nil {
		return adprovider.AdapterNotReady, fmt.Sprintf("Status check failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return adprovider.AdapterNotReady, fmt.Sprintf("Status endpoint returned %d", resp.StatusCode)
	}
	return adprovider.AdapterReady, "Ready"
}

// LoadNativeAd runs one auction for the ad unit and calls done with the outcome.
func (p *Provider) LoadNativeAd(ctx context.Context, req adprovider.LoadRequest, done func(adprovider.LoadResult)) {
	go func() {
		ad, err := p.load(ctx, req)
		if err != nil {
			done(adprovider.Failed(err))
			return
		}
		done(adprovider.Loaded(ad))
	}()
}

func (p *Provider) load(ctx context.Context, req adprovider.LoadRequest) (*nativeAd, *adprovider.LoadError) {
	if p.cfg.Endpoint == "" {
		return nil, adprovider.NewLoadError(&errortypes.Configuration{Message: "provider.endpoint is not set"}, adprovider.ResponseInfo{})
	}
	if timeout := p.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	bidRequest, err := p.buildBidRequest(req)
	if err != nil {
		return nil, adprovider.NewLoadError(&errortypes.BadInput{Message: err.Error()}, adprovider.ResponseInfo{})
	}
	info := adprovider.ResponseInfo{ResponseID: bidRequest.ID}

	postBody, err := json.Marshal(bidRequest)
	if err != nil {
		return nil, adprovider.NewLoadError(&errortypes.BadInput{Message: fmt.Sprintf("Error creating JSON for the auction: %v", err)}, info)
	}

	httpReq, err := http.NewRequest("POST", p.cfg.Endpoint, bytes.NewReader(postBody))
	if err != nil {
		return nil, adprovider.NewLoadError(&errortypes.BadInput{Message: fmt.Sprintf("Error creating POST request to the auction: %v", err)}, info)
	}
	httpReq.Header.Add("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Add("Accept", "application/json")
	httpReq.Header.Add("x-openrtb-version", "2.6")

	startTime := p.clock.Now()
	httpResp, err := ctxhttp.Do(ctx, p.httpClient, httpReq)
	elapsedTime := p.clock.Since(startTime)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, adprovider.NewLoadError(&errortypes.Timeout{Message: fmt.Sprintf("Auction timed out after %v", elapsedTime)}, info)
		}
		return nil, adprovider.NewLoadError(&errortypes.Network{Message: fmt.Sprintf("Error sending the auction request: %v; Duration=%v", err, elapsedTime)}, info)
	}
	defer httpResp.Body.Close()

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, adprovider.NewLoadError(&errortypes.Network{Message: fmt.Sprintf("Error reading the auction response: %v", err)}, info)
	}

	if httpResp.StatusCode == http.StatusNoContent {
		return nil, adprovider.NewLoadError(&errortypes.NoFill{Message: "Auction returned no bids"}, info)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, adprovider.NewLoadError(&errortypes.BadServerResponse{
			Message: fmt.Sprintf("Auction call to %s returned %d: %s", p.cfg.Endpoint, httpResp.StatusCode, responseBody),
		}, info)
	}

	var bidResponse openrtb2.BidResponse
	if err := json.Unmarshal(responseBody, &bidResponse); err != nil {
		return nil, adprovider.NewLoadError(&errortypes.BadServerResponse{Message: fmt.Sprintf("Error parsing the auction response: %v", err)}, info)
	}
	if bidResponse.ID != "" {
		info.ResponseID = bidResponse.ID
	}

	bid, seat := bestBid(&bidResponse)
	if bid == nil {
		return nil, adprovider.NewLoadError(&errortypes.NoFill{Message: "Auction returned no bids"}, info)
	}
	info.AdSourceName = seat
	info.AdSourceInstanceName = bid.CrID
	info.Extras = map[string]string{
		"bid_id": bid.ID,
		"imp_id": bid.ImpID,
	}

	markup, err := parseNativeMarkup([]byte(bid.AdM))
	if err != nil {
		return nil, adprovider.NewLoadError(&errortypes.BadServerResponse{Message: err.Error()}, info)
	}

	currency := bidResponse.Cur
	if currency == "" {
		currency = "USD"
	}
	return p.newNativeAd(ctx, info, markup, bid, currency), nil
}

func (p *Provider) buildBidRequest(req adprovider.LoadRequest) (*openrtb2.BidRequest, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("Error generating the request id: %v", err)
	}

	nativeRequest, err := json.Marshal(nativeRequests.Request{
		Ver:      nativeVersion,
		PlcmtCnt: 1,
		Assets: []nativeRequests.Asset{
			{ID: assetTitle, Required: 1, Title: &nativeRequests.Title{Len: 90}},
			{ID: assetIcon, Img: &nativeRequests.Image{Type: native1.ImageAssetTypeIcon, WMin: 50, HMin: 50}},
			{ID: assetCTA, Data: &nativeRequests.Data{Type: native1.DataAssetTypeCTAText, Len: 25}},
			{ID: assetSponsored, Data: &nativeRequests.Data{Type: native1.DataAssetTypeSponsored, Len: 25}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating the native request: %v", err)
	}

	bidRequest := &openrtb2.BidRequest{
		ID: id.String(),
		Imp: []openrtb2.Imp{{
			ID:    "1",
			TagID: req.AdUnitID,
			Native: &openrtb2.Native{
				Request: string(nativeRequest),
				Ver:     nativeVersion,
			},
		}},
		App: &openrtb2.App{
			Bundle:   p.cfg.App.Bundle,
			Name:     p.cfg.App.Name,
			StoreURL: p.cfg.App.StoreURL,
			Ver:      p.cfg.App.Version,
		},
		TMax: p.cfg.Timeout().Milliseconds(),
	}
	return bidRequest, nil
}

// bestBid returns the highest priced bid with markup along with its seat.
func bestBid(resp *openrtb2.BidResponse) (*openrtb2.Bid, string) {
	var best *openrtb2.Bid
	var seat string
	for i := range resp.SeatBid {
		for j := range resp.SeatBid[i].Bid {
			bid := &resp.SeatBid[i].Bid[j]
			if bid.AdM == "" {
				continue
			}
			if best == nil || bid.Price > best.Price {
				best = bid
				seat = resp.SeatBid[i].Seat
			}
		}
	}
	return best, seat
}

// parseNativeMarkup decodes Native 1.x markup. Native 1.0 wraps the payload in a
// "native" object.
func parseNativeMarkup(adm []byte) (*nativeResponse.Response, error) {
	if value, dataType, _, err := jsonparser.Get(adm, "native"); err == nil && dataType == jsonparser.Object {
		adm = value
	}

	var markup nativeResponse.Response
	if err := json.Unmarshal(adm, &markup); err != nil {
		return nil, fmt.Errorf("Error parsing native markup: %v", err)
	}
	if len(markup.Assets) == 0 {
		return nil, errors.New("Native markup has no assets")
	}
	return &markup, nil
}

func (p *Provider) newNativeAd(ctx context.Context, info adprovider.ResponseInfo, markup *nativeResponse.Response, bid *openrtb2.Bid, currency string) *nativeAd {
	ad := &nativeAd{
		info:       info,
		link:       markup.Link,
		privacyURL: markup.Privacy,
		price:      bid.Price,
		currency:   currency,
		trackers:   p.trackers,
		opener:     p.opener,
	}

	for _, asset := range markup.Assets {
		switch {
		case asset.Title != nil:
			ad.headline = asset.Title.Text
		case asset.Img != nil:
			if isAsset(asset, assetIcon) || asset.Img.Type == native1.ImageAssetTypeIcon {
				ad.icon = p.fetchImage(ctx, asset.Img.URL, asset.Img.W, asset.Img.H)
			}
		case asset.Data != nil:
			if isAsset(asset, assetCTA) || asset.Data.Type == native1.DataAssetTypeCTAText {
				ad.callToAction = asset.Data.Value
			} else if isAsset(asset, assetSponsored) || asset.Data.Type == native1.DataAssetTypeSponsored {
				ad.sponsor = asset.Data.Value
			}
		}
		if asset.Link != nil && ad.link.URL == "" {
			ad.link = *asset.Link
		}
	}

	if ad.sponsor != "" {
		ad.info.Extras["sponsored_by"] = ad.sponsor
	}
	if ad.privacyURL != "" && p.cfg.AdChoicesLogoURL != "" {
		ad.adChoices = p.fetchImage(ctx, p.cfg.AdChoicesLogoURL, 0, 0)
	}

	ad.impressionURLs = impressionURLs(markup, bid)
	return ad
}

func isAsset(asset nativeResponse.Asset, id int64) bool {
	return asset.ID != nil && *asset.ID == id
}

func (p *Provider) fetchImage(ctx context.Context, url string, w, h int64) *adprovider.Image {
	if url == "" {
		return nil
	}
	img := &adprovider.Image{URL: url, Width: int(w), Height: int(h)}
	data, err := p.images.Get(ctx, url)
	if err != nil {
		glog.Warningf("Failed to fetch native ad image %s: %v", url, err)
		return img
	}
	img.Data = data
	return img
}

// impressionURLs collects the legacy imptrackers, image event trackers and the win
// and billing notices of the bid.
func impressionURLs(markup *nativeResponse.Response, bid *openrtb2.Bid) []string {
	urls := make([]string, 0, len(markup.ImpTrackers)+2)
	urls = append(urls, markup.ImpTrackers...)
	for _, tracker := range markup.EventTrackers {
		if tracker.Event == native1.EventTypeImpression && tracker.Method == native1.EventTrackingMethodImage {
			urls = append(urls, tracker.URL)
		}
	}
	if bid.NURL != "" {
		urls = append(urls, bid.NURL)
	}
	if bid.BURL != "" {
		urls = append(urls, bid.BURL)
	}
	return expandPriceMacro(urls, bid.Price)
}
