// Package propagate moves a detected template commit onto each fork's
// tracking branch, creating the branch when absent and fast-forwarding it
// otherwise. Updates never force-push, so diverged tracking branches surface
// as conflicts instead of losing history.
package propagate
