// Package types contains the shared data shapes used across wowplug:
// the addon record and manifest, the reconciliation plan and run report,
// and the interfaces the engine consumes (filesystem, scanner, catalog
// resolver, fetcher).
package types
