package types

import "context"

// LoadResult is what a content loader produces for one bundle: the
// template with scripts stripped, a script executor bound to the fetched
// sources, and the base path relative asset URLs resolve against.
type LoadResult struct {
	Template        string
	AssetPublicPath string

	// Scripts and Styles list the collected asset references in document
	// order, for diagnostics. Script sources themselves are bound into
	// ExecScripts.
	Scripts []string
	Styles  []string

	// ExecScripts evaluates the bundle's scripts against global and
	// returns the exported lifecycles. strict requests strict-mode
	// evaluation.
	ExecScripts func(ctx context.Context, global GlobalLike, strict bool) (*Lifecycles, error)
}

// ContentLoader resolves a bundle locator into a LoadResult. Retrieval
// internals (transport, retries, caching) stay below this contract.
type ContentLoader interface {
	Load(ctx context.Context, app *AppDescriptor) (*LoadResult, error)
}
