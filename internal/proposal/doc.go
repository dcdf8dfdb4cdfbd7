// Package proposal manages the labeled merge proposals that carry template
// changes from a fork's tracking branch into its main branch. Each fork keeps
// at most one open automation proposal; clean proposals merge automatically
// with a merge commit while conflicted ones stay open for manual resolution.
package proposal
