// Package registry maintains the declarative set of downstream forks that
// receive template propagation, validating fork declarations and exposing a
// deterministic iteration order for sync runs.
package registry
