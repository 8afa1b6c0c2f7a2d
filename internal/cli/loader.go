package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/storywatch/storyfold/internal/registry"
	"github.com/storywatch/storyfold/internal/store"
)

// loadRegistryDir compiles the CUE registry at dir, failing on the
// first problem. Command paths that only need a usable registry
// (consolidate, test) go through here; the validate command keeps the
// full error list instead.
func loadRegistryDir(dir string) (*registry.Registry, error) {
	reg, errs := registry.LoadDir(dir)
	if len(errs) > 0 {
		return nil, fmt.Errorf("registry %s: %w", dir, errors.Join(errs...))
	}
	return reg, nil
}

// registryFromStore derives a registry from the countries already
// present in the database, all enabled. This is the scope gate when no
// --registry directory is given: anything in the data is fair game,
// anything else is a config error.
func registryFromStore(ctx context.Context, st *store.Store) (*registry.Registry, error) {
	codes, err := st.Countries(ctx)
	if err != nil {
		return nil, err
	}
	countries := make([]registry.Country, len(codes))
	for i, code := range codes {
		countries[i] = registry.Country{Code: code, Name: code, Enabled: true}
	}
	return registry.NewRegistry(countries), nil
}

// scopeRegistry picks the registry for scope resolution: the CUE
// directory when one is configured, the database otherwise.
func scopeRegistry(ctx context.Context, st *store.Store, dir string) (*registry.Registry, error) {
	if dir != "" {
		return loadRegistryDir(dir)
	}
	return registryFromStore(ctx, st)
}
