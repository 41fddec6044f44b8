package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
)

// sitemapURLSet is the <urlset> document at /sitemap.xml.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapIndex is the <sitemapindex> variant pointing at nested sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

const maxSitemapBytes = 10 * 1024 * 1024

// fetchSitemap collects <loc> entries from the site's sitemap. A sitemap
// index is followed one level deep. Returns nil when no sitemap exists.
func (c *Crawler) fetchSitemap(ctx context.Context, start *url.URL) []string {
	base := start.Scheme + "://" + start.Host
	return c.fetchSitemapURL(ctx, base+"/sitemap.xml", true)
}

func (c *Crawler) fetchSitemapURL(ctx context.Context, sitemapURL string, followIndex bool) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil
	}

	var urlset sitemapURLSet
	if err := xml.Unmarshal(data, &urlset); err == nil && len(urlset.URLs) > 0 {
		locs := make([]string, 0, len(urlset.URLs))
		for _, u := range urlset.URLs {
			if u.Loc != "" {
				locs = append(locs, u.Loc)
			}
		}
		return locs
	}

	if followIndex {
		var index sitemapIndex
		if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
			var locs []string
			for _, sm := range index.Sitemaps {
				if sm.Loc == "" {
					continue
				}
				locs = append(locs, c.fetchSitemapURL(ctx, sm.Loc, false)...)
				if len(locs) >= c.opts.MaxPages {
					break
				}
			}
			return locs
		}
	}

	return nil
}
