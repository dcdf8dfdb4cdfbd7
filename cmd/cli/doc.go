// Package cli constructs the templatesync command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives shared by the sync and forks commands.
package cli
