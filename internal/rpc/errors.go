package rpc

// Error is the wire form of an RPC failure: a numeric code, a short
// machine name and a human-readable message. Policy verdicts are never
// Errors; a rejected transaction is a successful submit response.
type Error struct {
	Code    int    `json:"error_code"`
	Name    string `json:"error"`
	Message string `json:"error_message,omitempty"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Name
}

// Error codes. The negative range follows JSON-RPC conventions; the
// positive range is application-specific.
const (
	CodeUnknown        = -1
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeParse          = -32700

	CodeMissingCommand = 2
	CodeNotFound       = 19
	CodeUnavailable    = 30
	CodeNotSupported   = 32
	CodeTxMalformed    = 60
	CodeTxBadAuth      = 61
	CodeTxNoEntry      = 62
)

// NewError builds an Error from its parts.
func NewError(code int, name, message string) *Error {
	return &Error{Code: code, Name: name, Message: message}
}

// Common error constructors.

func ErrorParse(message string) *Error {
	return NewError(CodeParse, "jsonInvalid", message)
}

func ErrorMissingCommand() *Error {
	return NewError(CodeMissingCommand, "missingCommand", "Missing method field")
}

func ErrorMethodNotFound(method string) *Error {
	return NewError(CodeMethodNotFound, "unknownCmd", "Unknown method: "+method)
}

func ErrorInvalidParams(message string) *Error {
	return NewError(CodeInvalidParams, "invalidParams", message)
}

func ErrorMissingField(field string) *Error {
	return NewError(CodeInvalidParams, "invalidParams", "Missing field '"+field+"'.")
}

func ErrorInvalidField(field string) *Error {
	return NewError(CodeInvalidParams, "invalidParams", "Invalid field '"+field+"'.")
}

func ErrorInternal(message string) *Error {
	return NewError(CodeInternal, "internal", message)
}

func ErrorNotFound(message string) *Error {
	return NewError(CodeNotFound, "notFound", message)
}

func ErrorUnavailable(message string) *Error {
	return NewError(CodeUnavailable, "unavailable", message)
}

func ErrorNotSupported(message string) *Error {
	return NewError(CodeNotSupported, "notSupported", message)
}

func ErrorTxMalformed(message string) *Error {
	return NewError(CodeTxMalformed, "txMalformed", message)
}

func ErrorTxBadAuth(message string) *Error {
	return NewError(CodeTxBadAuth, "txBadAuth", message)
}

func ErrorTxNoEntry(message string) *Error {
	return NewError(CodeTxNoEntry, "txNoEntry", message)
}
