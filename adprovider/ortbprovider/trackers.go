package ortbprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"
	"golang.org/x/sync/errgroup"
)

const auctionPriceMacro = "${AUCTION_PRICE}"

type trackerClient struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Fire pings every url in the background. Failures are logged.
func (c *trackerClient) Fire(kind string, urls []string) {
	if len(urls) == 0 {
		return
	}
	go func() {
		if err := c.fire(context.Background(), urls); err != nil {
			glog.Warningf("Failed to fire %s trackers: %v", kind, err)
		}
	}()
}

func (c *trackerClient) fire(ctx context.Context, urls []string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, url := range urls {
		url := url
		g.Go(func() error {
			resp, err := ctxhttp.Get(ctx, c.httpClient, url)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			if resp.StatusCode >= 400 {
				return fmt.Errorf("tracker %s returned %d", url, resp.StatusCode)
			}
			return nil
		})
	}
	return g.Wait()
}

func expandPriceMacro(urls []string, price float64) []string {
	replacer := strings.NewReplacer(auctionPriceMacro, strconv.FormatFloat(price, 'f', -1, 64))
	expanded := make([]string, 0, len(urls))
	for _, url := range urls {
		if url == "" {
			continue
		}
		expanded = append(expanded, replacer.Replace(url))
	}
	return expanded
}
