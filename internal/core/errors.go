package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTooManyProcesses is returned when all processing slots are occupied and
// the wait timeout expires. Clients should retry after a short delay.
var ErrTooManyProcesses = errors.New("too many concurrent process requests, please try again later")

// ErrNoFiniteData is wrapped by a SourceReadError when a variable holds no
// finite value to derive a range from.
var ErrNoFiniteData = errors.New("no finite values")

// SourceReadError reports a failure to read a variable (or a whole file) from
// a source file.
type SourceReadError struct {
	Path     string
	Variable string
	Err      error
}

func (e *SourceReadError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("read source %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("read source %s: variable %q: %v", e.Path, e.Variable, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// ConfigNotFoundError reports a variable with no stored configuration row for
// a project.
type ConfigNotFoundError struct {
	ProjectID int64
	Variable  string
}

func (e *ConfigNotFoundError) Error() string {
	if e.ProjectID == 0 {
		return fmt.Sprintf("config not found for variable %q", e.Variable)
	}
	return fmt.Sprintf("config not found for project %d and variable %q", e.ProjectID, e.Variable)
}

// InvalidRangeError reports a selected sub-range that is empty once clamped
// into the observed bounds. The update of that variable is rejected.
type InvalidRangeError struct {
	Variable  string
	ThrMinSel *float64
	ThrMaxSel *float64
	ThrMin    float64
	ThrMax    float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range for variable %q: selection [%s, %s] is empty within bounds [%g, %g]",
		e.Variable, formatBound(e.ThrMinSel), formatBound(e.ThrMaxSel), e.ThrMin, e.ThrMax)
}

func formatBound(p *float64) string {
	if p == nil {
		return "unset"
	}
	return fmt.Sprintf("%g", *p)
}

// ProjectNotFoundError reports an unknown project id.
type ProjectNotFoundError struct {
	ID int64
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %d not found", e.ID)
}

// InvalidFileExtensionError reports project files whose extension is not
// supported.
type InvalidFileExtensionError struct {
	Files   []string
	Allowed []string
}

func (e *InvalidFileExtensionError) Error() string {
	return fmt.Sprintf("invalid file extension for %s: allowed extensions are %s",
		strings.Join(e.Files, ", "), strings.Join(e.Allowed, ", "))
}

// MixedFileTypesError reports a project mixing observation and simulation files.
type MixedFileTypesError struct {
	Kinds []string
}

func (e *MixedFileTypesError) Error() string {
	return fmt.Sprintf("mixed file types in project: %s", strings.Join(e.Kinds, ", "))
}

// ValidationError reports an invalid input value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProjectError attaches the project id and operation to an error.
type ProjectError struct {
	ProjectID int64
	Op        string
	Err       error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s project %d: %v", e.Op, e.ProjectID, e.Err)
}

func (e *ProjectError) Unwrap() error { return e.Err }

// RangeErrors returns every InvalidRangeError joined into err.
func RangeErrors(err error) []*InvalidRangeError {
	if err == nil {
		return nil
	}
	var out []*InvalidRangeError
	var walk func(error)
	walk = func(e error) {
		if ire, ok := e.(*InvalidRangeError); ok {
			out = append(out, ire)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// onlyRangeErrors reports whether err consists solely of InvalidRangeErrors.
func onlyRangeErrors(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*InvalidRangeError); ok {
		return true
	}
	u, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return false
	}
	for _, inner := range u.Unwrap() {
		if !onlyRangeErrors(inner) {
			return false
		}
	}
	return true
}

// StatusClientClosedRequest describes a request the client cancelled before
// it completed. It follows the nginx convention.
const StatusClientClosedRequest = 499

// HTTPStatus returns the HTTP status code that best describes err.
func HTTPStatus(err error) int {
	var (
		notFound  *ProjectNotFoundError
		cfgNF     *ConfigNotFoundError
		badExt    *InvalidFileExtensionError
		mixed     *MixedFileTypesError
		invalid   *ValidationError
		badRange  *InvalidRangeError
		sourceErr *SourceReadError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &notFound), errors.As(err, &cfgNF):
		return http.StatusNotFound
	case errors.As(err, &badExt), errors.As(err, &mixed), errors.As(err, &invalid), errors.As(err, &badRange):
		return http.StatusUnprocessableEntity
	case IsCancellation(err):
		return StatusClientClosedRequest
	case errors.Is(err, ErrTooManyProcesses):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &sourceErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorContext extracts the identifying fields (project id, file path,
// variable) carried by err, for error responses and logs.
func ErrorContext(err error) map[string]any {
	ctx := make(map[string]any)
	var (
		projErr   *ProjectError
		notFound  *ProjectNotFoundError
		cfgNF     *ConfigNotFoundError
		sourceErr *SourceReadError
		badRange  *InvalidRangeError
		invalid   *ValidationError
		badExt    *InvalidFileExtensionError
	)
	if errors.As(err, &projErr) {
		ctx["project_id"] = projErr.ProjectID
	}
	if errors.As(err, &notFound) {
		ctx["project_id"] = notFound.ID
	}
	if errors.As(err, &cfgNF) {
		if cfgNF.ProjectID != 0 {
			ctx["project_id"] = cfgNF.ProjectID
		}
		ctx["variable"] = cfgNF.Variable
	}
	if errors.As(err, &sourceErr) {
		ctx["path"] = sourceErr.Path
		if sourceErr.Variable != "" {
			ctx["variable"] = sourceErr.Variable
		}
	}
	if errors.As(err, &badRange) {
		ctx["variable"] = badRange.Variable
	}
	if errors.As(err, &invalid) {
		ctx["field"] = invalid.Field
	}
	if errors.As(err, &badExt) {
		ctx["files"] = badExt.Files
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}
