package mpegts

import "github.com/asticode/go-astikit"

// Package-level diagnostic logger, a no-op adapter until SetLogger
// installs one. No code in the package writes to it; parse failures are
// reported only through returned errors and Raw envelopes.
var logger = astikit.AdaptStdLogger(nil)

// SetLogger installs l as the package's diagnostic logger.
func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }
