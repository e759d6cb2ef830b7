package desktopclient

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

const defaultParamCacheSize = 256

// paramRegistrar syncs the Engine's ParameterDefinitions against the
// avatar application's registered parameters, creating only the ones that
// don't already exist. An LRU keyed by parameter name tracks parameters
// already confirmed registered on the current connection, so a repeated Sync
// on that connection doesn't re-issue creation requests for names it already
// handled, while a genuinely new name (added via rule hot-reload) is still
// picked up. The cache is cleared with Reset on every new connection.
type paramRegistrar struct {
	cache *lru.Cache[string, struct{}]
}

func newParamRegistrar(size int) (*paramRegistrar, error) {
	if size <= 0 {
		size = defaultParamCacheSize
	}
	c, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &paramRegistrar{cache: c}, nil
}

// Sync fetches the remote parameter list and issues a creation request for
// every definition neither built in nor already known to this registrar.
func (p *paramRegistrar) Sync(ctx context.Context, t requester, defs []domain.ParameterDefinition) error {
	resp, err := t.Request(ctx, messageTypeParamListRequest, struct{}{})
	if err != nil {
		return fmt.Errorf("list parameters: %w", err)
	}

	known := make(map[string]bool, len(defs))
	var listData parameterListResponseData
	if err := unmarshalInto(resp, &listData); err == nil {
		for _, rp := range listData.DefaultParameters {
			known[rp.Name] = true
		}
		for _, rp := range listData.CustomParameters {
			known[rp.Name] = true
		}
	}

	for _, def := range defs {
		if known[def.Name] {
			p.cache.Add(def.Name, struct{}{})
			continue
		}
		if _, ok := p.cache.Get(def.Name); ok {
			continue
		}

		_, err := t.Request(ctx, messageTypeParamCreate, parameterCreateData{
			ParameterName: def.Name,
			Explanation:   "facebridge rule parameter",
			Min:           def.Min,
			Max:           def.Max,
			DefaultValue:  def.Default,
		})
		if err != nil {
			return fmt.Errorf("create parameter %s: %w", def.Name, err)
		}
		p.cache.Add(def.Name, struct{}{})
	}

	return nil
}

// Reset clears the registrar's cache; callers do this on transport
// replacement since the new connection may be to a different avatar
// application instance with no knowledge of prior registrations.
func (p *paramRegistrar) Reset() {
	p.cache.Purge()
}
