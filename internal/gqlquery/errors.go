package gqlquery

import (
	"fmt"
)

// Error codes reported in the GraphQL error extensions.
const (
	CodeUnsupportedValue = "UNSUPPORTED_VALUE"
	CodeUnknownType      = "UNKNOWN_TYPE"
	CodeUnknownAttribute = "UNKNOWN_ATTRIBUTE"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeUnknownFragment  = "UNKNOWN_FRAGMENT"
	CodeUnknownOperation = "UNKNOWN_OPERATION"
	CodeDepthLimit       = "DEPTH_LIMIT_EXCEEDED"
	CodeFieldConflict    = "FIELD_CONFLICT"
)

// CodedError is implemented by every error the engine raises itself.
type CodedError interface {
	error
	Code() string
}

// UnsupportedValueError reports an argument value node the decoder cannot handle.
type UnsupportedValueError struct {
	Kind string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value node %s", e.Kind)
}

func (e *UnsupportedValueError) Code() string { return CodeUnsupportedValue }

// UnknownTypeError reports a top-level field with no matching entity type.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.Name)
}

func (e *UnknownTypeError) Code() string { return CodeUnknownType }

// UnknownAttributeError reports a selection naming an attribute the entity type lacks.
type UnknownAttributeError struct {
	EntityType string
	Attribute  string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q on %s", e.Attribute, e.EntityType)
}

func (e *UnknownAttributeError) Code() string { return CodeUnknownAttribute }

// InvalidArgumentError reports an argument that failed coercion.
type InvalidArgumentError struct {
	Argument string
	Value    any
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q (%v): %s", e.Argument, e.Value, e.Reason)
}

func (e *InvalidArgumentError) Code() string { return CodeInvalidArgument }

// UnknownFragmentError reports a spread of an undefined fragment.
type UnknownFragmentError struct {
	Name string
}

func (e *UnknownFragmentError) Error() string {
	return fmt.Sprintf("unknown fragment %q", e.Name)
}

func (e *UnknownFragmentError) Code() string { return CodeUnknownFragment }

// UnknownOperationError reports an operation name missing from the document.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation named %q", e.Name)
}

func (e *UnknownOperationError) Code() string { return CodeUnknownOperation }

// DepthLimitError reports a selection tree deeper than the configured limit.
type DepthLimitError struct {
	Field string
	Depth int
	Max   int
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf("query exceeds maximum depth of %d (field %q reaches depth %d)", e.Max, e.Field, e.Depth)
}

func (e *DepthLimitError) Code() string { return CodeDepthLimit }

// FieldConflictError reports one output key used for two different attributes
// in the same selection set.
type FieldConflictError struct {
	EntityType string
	Key        string
	First      string
	Second     string
}

func (e *FieldConflictError) Error() string {
	return fmt.Sprintf("output key %q on %s selects both %q and %q", e.Key, e.EntityType, e.First, e.Second)
}

func (e *FieldConflictError) Code() string { return CodeFieldConflict }
