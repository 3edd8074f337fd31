//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package corehttp

// maskSIGPIPE is a no-op on platforms without a SIGPIPE to mask (e.g.
// Windows, wasm).
func maskSIGPIPE() {}
