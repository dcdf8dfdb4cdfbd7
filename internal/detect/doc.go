// Package detect observes the template repository's main branch and reports a
// change event whenever its tip differs from the last commit recorded in the
// persistent sync marker.
package detect
