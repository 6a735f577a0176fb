// Package mcp exposes the post index over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
)

// MCP error codes. Negative values in the -32000 range are
// implementation-defined server errors in JSON-RPC.
const (
	ErrCodeIndexNotFound = -32001
	ErrCodeIndexBusy     = -32002
	ErrCodeTimeout       = -32003

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound is returned by CallTool for unknown tool names.
var ErrToolNotFound = errors.New("tool not found")

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	if pe, ok := perrors.As(err); ok {
		return mapPostError(pe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError reports a bad tool argument.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError reports an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapPostError(pe *perrors.PostError) *MCPError {
	msg := pe.Message
	if pe.Suggestion != "" {
		msg = msg + " " + pe.Suggestion
	}

	switch pe.Code {
	case perrors.ErrCodeIndexNotFound:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: msg}
	case perrors.ErrCodeIndexLocked:
		return &MCPError{Code: ErrCodeIndexBusy, Message: msg}
	case perrors.ErrCodeQueryParse, perrors.ErrCodeMissingParameter:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}
