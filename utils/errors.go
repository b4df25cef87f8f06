package utils

import (
	"fmt"
)

// Pipeline stages that can surface errors. The threading core itself has no
// fatal conditions; these cover the ingestion and persistence layers around
// it.
const (
	StageConfig  = "config"
	StageIngest  = "ingest"
	StageStorage = "storage"
)

// PipelineError represents an error raised by one of the batch pipeline
// stages, with context about what was being processed.
type PipelineError struct {
	Stage   string                 // Pipeline stage that failed
	Message string                 // Operator-friendly message
	Err     error                  // Underlying error
	Context map[string]interface{} // Additional context
}

// NewPipelineError creates a new PipelineError
func NewPipelineError(stage, message string, err error) *PipelineError {
	return &PipelineError{
		Stage:   stage,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	e.Context[key] = value
	return e
}

// Common error constructors
func ConfigError(message string, err error) *PipelineError {
	return NewPipelineError(StageConfig, message, err)
}

func IngestError(message string, err error) *PipelineError {
	return NewPipelineError(StageIngest, message, err)
}

func StorageError(message string, err error) *PipelineError {
	return NewPipelineError(StageStorage, message, err)
}
