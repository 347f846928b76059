package llm

import "fmt"

// ConfigurationError means the analyzer cannot run at all, e.g. because no
// API key is configured. Its message is meant to be shown as is.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

var errMissingCredential = &ConfigurationError{
	Message: "API key not found. Please set the GEMINI_API_KEY environment variable.",
}

// AnalysisError covers every failure of the remote call: transport errors,
// errors reported by the service and responses that do not match the
// product schema. Err holds the underlying cause for logging.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("could not analyze the image: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
