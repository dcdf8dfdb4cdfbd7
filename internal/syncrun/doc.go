// Package syncrun orchestrates a full propagation run: detect a new template
// commit, fan out across the registered forks with bounded concurrency, open
// or refresh merge proposals, auto-merge the clean ones, and render a report
// of per-fork outcomes. The sync marker only advances when every fork reached
// a terminal outcome, so interrupted runs resume safely.
package syncrun
