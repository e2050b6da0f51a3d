package ir

// Version constants for the record schema and the module.
const (
	// FormatVersion is the version of the record and snapshot layout.
	FormatVersion = "1"

	// ModelVersion is the classmodel version.
	ModelVersion = "0.1.0"
)
