package models

import (
	"fmt"
	"time"
)

// UTCMicro formats t as ISO-8601 UTC with microsecond precision, e.g.
// "2025-03-09T14:21:05.123456Z". Journal records use this form.
func UTCMicro(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

// UTCMicroDashed is the filesystem-safe variant used in run directory and
// report file names, e.g. "2025-03-09T14-21-05-123456Z".
func UTCMicroDashed(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s-%06dZ", u.Format("2006-01-02T15-04-05"), u.Nanosecond()/1000)
}
