// Package forge wraps the GitHub CLI behind the narrow collaborator boundary
// templatesync needs: branch head reads, tracking-branch writes, and the
// lifecycle of automation-labeled merge proposals. Failures are classified
// into a small taxonomy so callers can distinguish retryable trouble from
// conflicts that require an operator.
package forge
