// Package provider adapts external price sources to a common lookup.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RateSentinel/internal/model"
)

var (
	ErrBadFeedID       = errors.New("feed id must look like <provider>:<reference>")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoValue         = errors.New("no numeric value in response")
	ErrNonPositive     = errors.New("value is not a finite positive number")
)

// Reading is one normalized answer from a provider.
type Reading struct {
	Value float64
	// ObservedAt is the provider's own timestamp; zero when it reports none.
	ObservedAt time.Time
}

// Provider performs one external lookup for a feed reference.
type Provider interface {
	Fetch(ctx context.Context, ref string, token model.TokenFeedConfig) (Reading, error)
	Name() string
}

// FeedID is a parsed registry feed identifier.
type FeedID struct {
	Provider  string
	Reference string
}

func (f FeedID) String() string { return f.Provider + ":" + f.Reference }

// ParseFeedID splits "<provider>:<reference>". The reference may itself contain colons.
func ParseFeedID(id string) (FeedID, error) {
	kind, ref, ok := strings.Cut(strings.TrimSpace(id), ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	ref = strings.TrimSpace(ref)
	if !ok || kind == "" || ref == "" {
		return FeedID{}, fmt.Errorf("%w: %q", ErrBadFeedID, id)
	}
	return FeedID{Provider: kind, Reference: ref}, nil
}

// CheckValue rejects values that cannot be a rate.
func CheckValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v", ErrNonPositive, v)
	}
	return nil
}

// Registry maps provider names to adapters.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers under their Name().
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[strings.ToLower(p.Name())] = p
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
