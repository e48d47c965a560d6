// Package mainboilerplate contains shared boilerplate for this project's
// programs: configuration parsing, logging, diagnostics, and version
// reporting. Callers pick the narrowly scoped pieces they need.
package mainboilerplate

// Version and BuildDate are populated at build time through -ldflags -X.
var (
	Version   = "development"
	BuildDate = "unknown"
)
