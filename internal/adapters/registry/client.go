// Package registry fetches manifest digests from Distribution-compatible
// registries over the v2 API, with anonymous bearer-token auth for
// registries that challenge (Docker Hub, ghcr, quay).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/distribution/reference"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"

	"harborview/internal/core/domain"
)

const acceptManifest = "application/vnd.docker.distribution.manifest.v2+json, " +
	"application/vnd.docker.distribution.manifest.list.v2+json, " +
	"application/vnd.oci.image.manifest.v1+json, " +
	"application/vnd.oci.image.index.v1+json"

// Client implements ports.RegistryClient. Digests come from HEAD requests
// against /v2/<name>/manifests/<tag>; the registry reports the manifest
// digest in the Docker-Content-Digest response header, so no body is
// transferred.
type Client struct {
	http   *retryablehttp.Client
	log    *slog.Logger
	scheme string

	mu     sync.Mutex
	tokens map[string]token
}

type token struct {
	value   string
	expires time.Time
}

// NewClient creates a registry client with bounded retries and the given
// per-request timeout.
func NewClient(timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return &Client{http: rc, log: log, scheme: "https", tokens: make(map[string]token)}
}

// ManifestDigest resolves the digest the registry currently serves for
// repository:tag.
func (c *Client) ManifestDigest(ctx context.Context, repository, tag string) (string, error) {
	named, err := reference.ParseNormalizedNamed(repository)
	if err != nil {
		return "", domain.WrapError(err, domain.CodeRegistryUnavailable, "parse image reference "+repository)
	}
	host := reference.Domain(named)
	if host == "docker.io" {
		host = "registry-1.docker.io"
	}
	manifestURL := fmt.Sprintf("%s://%s/v2/%s/manifests/%s", c.scheme, host, reference.Path(named), tag)

	d, err := c.head(ctx, manifestURL, c.cachedToken(manifestURL))
	if err != nil {
		return "", domain.WrapError(err, domain.CodeRegistryUnavailable, "fetch digest for "+repository+":"+tag)
	}
	return d, nil
}

func (c *Client) head(ctx context.Context, manifestURL, bearer string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, manifestURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", acceptManifest)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized && bearer == "":
		tok, err := c.authorize(ctx, resp.Header.Get("Www-Authenticate"), manifestURL)
		if err != nil {
			return "", err
		}
		return c.head(ctx, manifestURL, tok)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("registry returned %s", resp.Status)
	}

	raw := resp.Header.Get("Docker-Content-Digest")
	d, err := digest.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid digest header %q: %w", raw, err)
	}
	return d.String(), nil
}

var challengeParamRe = regexp.MustCompile(`(\w+)="([^"]*)"`)

// authorize answers a Bearer challenge with an anonymous token request and
// caches the token for the manifest URL.
func (c *Client) authorize(ctx context.Context, challenge, manifestURL string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(challenge), "bearer ") {
		return "", fmt.Errorf("unsupported auth challenge %q", challenge)
	}
	params := make(map[string]string)
	for _, m := range challengeParamRe.FindAllStringSubmatch(challenge, -1) {
		params[m[1]] = m[2]
	}
	realm := params["realm"]
	if realm == "" {
		return "", fmt.Errorf("auth challenge without realm: %q", challenge)
	}

	q := url.Values{}
	if params["service"] != "" {
		q.Set("service", params["service"])
	}
	if params["scope"] != "" {
		q.Set("scope", params["scope"])
	}
	tokenURL := realm
	if len(q) > 0 {
		tokenURL += "?" + q.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	tok := body.Token
	if tok == "" {
		tok = body.AccessToken
	}
	if tok == "" {
		return "", fmt.Errorf("token endpoint returned no token")
	}

	ttl := time.Duration(body.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	c.mu.Lock()
	c.tokens[manifestURL] = token{value: tok, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
	return tok, nil
}

func (c *Client) cachedToken(manifestURL string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[manifestURL]
	if !ok || time.Now().After(t.expires) {
		return ""
	}
	return t.value
}
