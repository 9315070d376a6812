package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/gelm-lang/gelm/pkg/cache"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/httputil"
)

// DefaultBase is the canonical package website. A mirror can be configured
// through the home configuration file.
const DefaultBase = "https://package.elm-lang.org"

// Client talks to the package website: the full and incremental version
// listings, and per-version package manifests. Archive endpoints are
// consumed by the fetcher through the same client.
//
// All methods are safe for concurrent use.
type Client struct {
	*httputil.Client
	base string
}

// NewClient creates a registry client against base (use [DefaultBase]),
// caching responses in backend for ttl.
func NewClient(base string, backend cache.Cache, ttl time.Duration) *Client {
	return &Client{
		Client: httputil.NewClient(backend, "registry:", ttl, nil),
		base:   base,
	}
}

// Base returns the registry base URL.
func (c *Client) Base() string { return c.base }

// AllPackages fetches the complete version listing: every package mapped
// to every version it has ever released.
func (c *Client) AllPackages(ctx context.Context) (map[core.PkgName][]core.Version, error) {
	var listing map[core.PkgName][]core.Version
	err := c.Get(ctx, c.base+"/all-packages", &listing)
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Since fetches the releases published after the first n known to us,
// newest first, as "author/project@version" strings.
func (c *Client) Since(ctx context.Context, n int) ([]Release, error) {
	var raw []string
	if err := c.Get(ctx, fmt.Sprintf("%s/all-packages/since/%d", c.base, n), &raw); err != nil {
		return nil, err
	}
	releases := make([]Release, len(raw))
	for i, s := range raw {
		rel, err := parseRelease(s)
		if err != nil {
			return nil, err
		}
		releases[i] = rel
	}
	return releases, nil
}

// Manifest fetches the published elm.json of one package version. The
// response is cached: published manifests are immutable.
func (c *Client) Manifest(ctx context.Context, pkg core.PkgName, vsn core.Version) ([]byte, error) {
	url := fmt.Sprintf("%s/packages/%s/%s/elm.json", c.base, pkg, vsn)
	return c.GetBytes(ctx, url)
}

// EndpointURL returns the endpoint descriptor location for one package
// version. The fetcher GETs it to learn the archive URL and hash.
func (c *Client) EndpointURL(pkg core.PkgName, vsn core.Version) string {
	return fmt.Sprintf("%s/packages/%s/%s/endpoint.json", c.base, pkg, vsn)
}
