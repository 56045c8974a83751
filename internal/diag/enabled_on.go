//go:build tickdebug

package diag

// Enabled reports whether verbose diagnostics were compiled in.
const Enabled = true
