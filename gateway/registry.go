package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/elnosh/nutgate/cashu"
	"github.com/elnosh/nutgate/cashu/nuts/nut06"
	"github.com/elnosh/nutgate/crypto"
)

const mintRefreshInterval = 5 * time.Minute

var ErrMintNotConfigured = errors.New("mint not configured")

// Registry holds the mints the gateway is configured for. The mint
// list is fixed at startup. Mint info and keysets are refreshed lazily
// per entry so a slow mint never blocks operations on another.
type Registry struct {
	client MintClient

	// mint urls in configuration order
	mintURLs []string
	entries  map[string]*mintEntry
}

type mintEntry struct {
	mu sync.Mutex

	url         string
	info        *nut06.MintInfo
	keyset      *crypto.PublicKeyset
	lastRefresh time.Time
}

func NewRegistry(mintURLs []string, client MintClient) (*Registry, error) {
	registry := &Registry{
		client:  client,
		entries: make(map[string]*mintEntry),
	}

	for _, mint := range mintURLs {
		parsed, err := url.Parse(mint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid mint url '%v'", mint)
		}
		normalized := strings.TrimSuffix(parsed.String(), "/")

		if _, ok := registry.entries[normalized]; ok {
			continue
		}
		registry.mintURLs = append(registry.mintURLs, normalized)
		registry.entries[normalized] = &mintEntry{url: normalized}
	}

	if len(registry.mintURLs) == 0 {
		return nil, errors.New("no mints configured")
	}

	return registry, nil
}

// ListMints returns the configured mint urls in a stable order.
func (r *Registry) ListMints() []string {
	mints := make([]string, len(r.mintURLs))
	copy(mints, r.mintURLs)
	return mints
}

func (r *Registry) Contains(mintURL string) bool {
	_, ok := r.entries[strings.TrimSuffix(mintURL, "/")]
	return ok
}

// Info returns the mint's info, refreshing it from the mint if stale.
func (r *Registry) Info(ctx context.Context, mintURL string) (*nut06.MintInfo, error) {
	entry, ok := r.entries[strings.TrimSuffix(mintURL, "/")]
	if !ok {
		return nil, ErrMintNotConfigured
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := r.refreshLocked(ctx, entry); err != nil {
		return nil, err
	}
	return entry.info, nil
}

// ActiveKeyset returns the mint's active keyset for the sat unit,
// refreshing it from the mint if stale.
func (r *Registry) ActiveKeyset(ctx context.Context, mintURL string) (*crypto.PublicKeyset, error) {
	entry, ok := r.entries[strings.TrimSuffix(mintURL, "/")]
	if !ok {
		return nil, ErrMintNotConfigured
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := r.refreshLocked(ctx, entry); err != nil {
		return nil, err
	}
	return entry.keyset, nil
}

// refreshLocked fetches the mint's info and active keyset. The
// entry's lock must be held.
func (r *Registry) refreshLocked(ctx context.Context, entry *mintEntry) error {
	if entry.info != nil && time.Since(entry.lastRefresh) < mintRefreshInterval {
		return nil
	}

	info, err := r.client.GetMintInfo(ctx, entry.url)
	if err != nil {
		return fmt.Errorf("error getting info from mint: %v", err)
	}

	keysets, err := r.client.GetKeysets(ctx, entry.url)
	if err != nil {
		return fmt.Errorf("error getting keysets from mint: %v", err)
	}
	activeKeysetId := ""
	for _, keyset := range keysets.Keysets {
		if keyset.Active && keyset.Unit == cashu.Sat.String() {
			activeKeysetId = keyset.Id
			break
		}
	}
	if len(activeKeysetId) == 0 {
		return errors.New("mint has no active sat keyset")
	}

	keysRes, err := r.client.GetActiveKeysets(ctx, entry.url)
	if err != nil {
		return fmt.Errorf("error getting keys from mint: %v", err)
	}

	var keyset *crypto.PublicKeyset
	for _, keys := range keysRes.Keysets {
		if keys.Id != activeKeysetId {
			continue
		}
		keyset, err = crypto.ParsePublicKeyset(entry.url, keys.Id, keys.Unit, keys.Keys)
		if err != nil {
			return err
		}
		break
	}
	if keyset == nil {
		return errors.New("mint did not return keys for its active sat keyset")
	}

	entry.info = info
	entry.keyset = keyset
	entry.lastRefresh = time.Now()
	return nil
}
