package models

import "fmt"

// Custom error types for better error handling
type (
	// ValidationError represents a malformed or out-of-range request parameter
	ValidationError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	// NotFoundError represents a missing original, customer or derivative
	NotFoundError struct {
		Resource string `json:"resource"`
		ID       string `json:"id"`
	}

	// EmptyOriginalError means the stored original has zero bytes
	EmptyOriginalError struct {
		Path string `json:"path"`
	}

	// InvalidImageError means the stored original could not be decoded
	InvalidImageError struct {
		Path   string `json:"path"`
		Reason string `json:"reason"`
	}

	// UpstreamError represents an object store or secrets failure that
	// outlived the retry policy
	UpstreamError struct {
		Operation string `json:"operation"`
		Reason    string `json:"reason"`
	}

	// StorageError represents a storage operation error
	StorageError struct {
		Operation string `json:"operation"`
		Backend   string `json:"backend"`
		Reason    string `json:"reason"`
	}
)

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

func (e EmptyOriginalError) Error() string {
	return fmt.Sprintf("the original file %s has 0 bytes", e.Path)
}

func (e InvalidImageError) Error() string {
	return fmt.Sprintf("image file %s is corrupted or invalid: %s", e.Path, e.Reason)
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("upstream error during %s: %s", e.Operation, e.Reason)
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error during %s on %s: %s", e.Operation, e.Backend, e.Reason)
}
