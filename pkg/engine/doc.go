// Package engine is wowplug's reconciliation core. It computes the
// three-way diff between the desired manifest, the live AddOns
// directory, and the quarantine cache, decides one action per addon,
// and executes the plan with the live/cache ownership invariant intact
// across partial failures.
package engine
