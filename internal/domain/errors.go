package domain

// Code is the machine-readable error code surfaced to API callers.
type Code string

const (
	CodeInvalidName            Code = "INVALID_NAME"
	CodeInvalidPhone           Code = "INVALID_PHONE"
	CodeInvalidPackage         Code = "INVALID_PACKAGE"
	CodeEmptyMessage           Code = "EMPTY_MESSAGE"
	CodeConversationClosed     Code = "CONVERSATION_CLOSED"
	CodeDuplicateBooking       Code = "DUPLICATE_BOOKING"
	CodeConcurrentUpdate       Code = "CONCURRENT_UPDATE"
	CodeIncompleteConversation Code = "INCOMPLETE_CONVERSATION"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInvalidStatus          Code = "INVALID_STATUS"
	CodeInvalidRequest         Code = "INVALID_REQUEST"
	CodeInternal               Code = "INTERNAL"
)
