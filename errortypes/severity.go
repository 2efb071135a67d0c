package errortypes

// Severity represents the severity level of a bid processing error.
type Severity int

const (
	// SeverityUnknown represents an unknown severity level.
	SeverityUnknown Severity = iota

	// SeverityFatal represents a bid processing error which stops the wire
	// request for the affected bid entry.
	SeverityFatal

	// SeverityWarning represents a non-fatal condition which is logged and
	// otherwise ignored by bid processing.
	SeverityWarning
)

// IsWarning returns true if the error is labeled with SeverityWarning.
func IsWarning(err error) bool {
	s, ok := err.(Coder)
	return ok && s.Severity() == SeverityWarning
}

// IsFatal returns true if the error is labeled with SeverityFatal, or carries
// no severity information at all.
func IsFatal(err error) bool {
	s, ok := err.(Coder)
	return !ok || s.Severity() == SeverityFatal
}
