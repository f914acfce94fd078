package ortbprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/coocood/freecache"
	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"
)

// imageCache keeps downloaded ad images keyed by URL.
type imageCache struct {
	httpClient *http.Client
	cache      *freecache.Cache
	ttlSeconds int
}

func newImageCache(httpClient *http.Client, sizeBytes, ttlSeconds int) *imageCache {
	c := &imageCache{httpClient: httpClient, ttlSeconds: ttlSeconds}
	if sizeBytes > 0 {
		c.cache = freecache.NewCache(sizeBytes)
	}
	return c
}

// Get returns the bytes of the image at url, downloading it on a cache miss.
func (c *imageCache) Get(ctx context.Context, url string) ([]byte, error) {
	key := []byte(url)
	if c.cache != nil {
		if data, err := c.cache.Get(key); err == nil {
			glog.V(2).Infof("Image cache hit for %s", url)
			return data, nil
		}
	}

	resp, err := ctxhttp.Get(ctx, c.httpClient, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image request returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(key, data, c.ttlSeconds); err != nil {
			glog.Warningf("Image %s not cached: %v", url, err)
		}
	}
	return data, nil
}

// Len returns the number of cached images.
func (c *imageCache) Len() int64 {
	if c.cache == nil {
		return 0
	}
	return c.cache.EntryCount()
}
