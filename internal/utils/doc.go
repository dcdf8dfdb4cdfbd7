// Package utils bundles shared infrastructure for the templatesync CLI:
// structured logger construction, Viper-backed configuration loading, and
// helpers for passing command-scoped values through contexts.
package utils
