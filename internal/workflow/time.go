package workflow

import "time"

// timeNow is a package-level variable for testability.
// Tests replace it to control timestamps in assertions.
var timeNow = time.Now
