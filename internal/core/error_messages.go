package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Typed errors are matched first via errors.As/errors.Is, then the
// technical message is matched against a pattern table.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source read failure: a variable could not be read from a file
//	         Action: Check the file exists and is a valid FITS or HDF5 file
//	         Matches: *SourceReadError
//
//	SRC002 - Unsupported file: the reader cannot open this kind of file
//	         Action: Use .fits observation cubes or .hdf5 simulation snapshots
//	         Patterns: "unsupported file type"
//
//	SRC003 - Empty variable: a variable holds no finite value
//	         Action: Deselect the variable or check the source file
//	         Matches: ErrNoFiniteData
//
// # Project Errors (PRJ001-PRJ099)
//
//	PRJ001 - Project not found
//	         Action: Refresh the project list and try again
//	         Matches: *ProjectNotFoundError
//
//	PRJ002 - Invalid file extension
//	         Action: Only .fits and .hdf5 files can be added to a project
//	         Matches: *InvalidFileExtensionError
//
//	PRJ003 - Mixed file types
//	         Action: Keep observation and simulation files in separate projects
//	         Matches: *MixedFileTypesError
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Configuration not found for a variable
//	         Action: Reload the project configuration before submitting
//	         Matches: *ConfigNotFoundError
//
//	CFG002 - Invalid range: the selected minimum exceeds the maximum
//	         Action: Choose a selection inside the variable bounds
//	         Matches: *InvalidRangeError
//
//	CFG003 - Invalid value
//	         Action: Check the highlighted field
//	         Matches: *ValidationError
//
// # Processing Errors (PROC001-PROC099)
//
//	PROC001 - System busy: too many process requests in flight
//	          Matches: ErrTooManyProcesses
//	PROC002 - Request cancelled
//	          Patterns: "context canceled"
//	PROC003 - Request timeout
//	          Patterns: "context deadline exceeded"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key                 Patterns: "duplicate key"
//	DB002 - Unique constraint             Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key                   Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused            Patterns: "connection refused"
//	DB005 - Connection reset              Patterns: "connection reset"
//	DB006 - Timeout                       Patterns: "timeout"
//	DB007 - Deadlock or locked database   Patterns: "deadlock", "database is locked"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests           Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// typedMatch maps a typed error to its user message.
type typedMatch struct {
	match func(error) bool
	msg   UserMessage
}

func as[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// typedMessages are checked before patterns, in order.
var typedMessages = []typedMatch{
	{
		match: as[*ProjectNotFoundError],
		msg: UserMessage{
			Message: "Project not found",
			Action:  "Refresh the project list and try again",
			Code:    "PRJ001",
		},
	},
	{
		match: as[*InvalidFileExtensionError],
		msg: UserMessage{
			Message: "One or more files have an unsupported extension",
			Action:  "Only .fits and .hdf5 files can be added to a project",
			Code:    "PRJ002",
		},
	},
	{
		match: as[*MixedFileTypesError],
		msg: UserMessage{
			Message: "A project cannot mix observation and simulation files",
			Action:  "Keep observation and simulation files in separate projects",
			Code:    "PRJ003",
		},
	},
	{
		match: as[*ConfigNotFoundError],
		msg: UserMessage{
			Message: "No stored configuration for this variable",
			Action:  "Reload the project configuration before submitting",
			Code:    "CFG001",
		},
	},
	{
		match: as[*InvalidRangeError],
		msg: UserMessage{
			Message: "The selected range is empty",
			Action:  "Choose a selection inside the variable bounds",
			Code:    "CFG002",
		},
	},
	{
		match: as[*ValidationError],
		msg: UserMessage{
			Message: "A submitted value is invalid",
			Action:  "Check the highlighted field",
			Code:    "CFG003",
		},
	},
	{
		match: is(ErrTooManyProcesses),
		msg: UserMessage{
			Message: "Too many process requests in progress",
			Action:  "Please wait a moment and try again",
			Code:    "PROC001",
		},
	},
	{
		match: is(ErrNoFiniteData),
		msg: UserMessage{
			Message: "A variable contains no usable values",
			Action:  "Deselect the variable or check the source file",
			Code:    "SRC003",
		},
	},
	{
		match: as[*SourceReadError],
		msg: UserMessage{
			Message: "Could not read data from a project file",
			Action:  "Check the file exists and is a valid FITS or HDF5 file",
			Code:    "SRC001",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type cannot be read",
			Action:  "Use .fits observation cubes or .hdf5 simulation snapshots",
			Code:    "SRC002",
		},
	},

	// =========================================================================
	// Request lifecycle (PROC002-PROC003)
	// Checked before DB006 so deadline errors do not read as database timeouts.
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "PROC002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Select fewer variables or increase downsampling, then try again",
			Code:    "PROC003",
		},
	},

	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Reload the project and try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate file paths",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate file paths",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "The project may have been deleted, reload and try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "The project may have been deleted, reload and try again",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, tm := range typedMessages {
		if tm.match(err) {
			return tm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// IsCancellation reports whether err stems from the caller going away rather
// than a server fault.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
