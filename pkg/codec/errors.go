package codec

import "fmt"

// ImportError describes why a tree document could not be converted back
// into a flow. Import is all-or-nothing: the first hard error aborts before
// any partial flow is produced.
type ImportError struct {
	Message string
}

func (e *ImportError) Error() string {
	return e.Message
}

func importErrorf(format string, args ...any) *ImportError {
	return &ImportError{Message: fmt.Sprintf(format, args...)}
}
