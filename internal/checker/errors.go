package checker

import (
	"fmt"
)

const (
	MsgEmptyDomain       = "Please enter a domain name"
	MsgNonJSON           = "Received non-JSON response from server"
	MsgDefaultFailure    = "Failed to check domain"
	MsgOffline           = "Please check your internet connection"
	MsgCheckSucceeded    = "Domain check completed successfully"
	MsgUnknownFailure    = "An error occurred while checking the domain"
	TitleSuccess         = "Success"
	TitleError           = "Error"
	jsonContentTypeToken = "application/json"
)

// ValidationError is returned for input rejected before any request is made.
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return MsgEmptyDomain
}

// TransportError is a response outside the 2xx range.
type TransportError struct {
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// UnexpectedContentTypeError is a response not declared as JSON. Detected is
// the sniffed kind of the body, kept for logs.
type UnexpectedContentTypeError struct {
	ContentType string
	Detected    string
}

func (e *UnexpectedContentTypeError) Error() string {
	return MsgNonJSON
}

// ParseError is a JSON-declared body that does not decode.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ApplicationError is a decoded body with success set to false.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return MsgDefaultFailure
	}
	return e.Message
}

// NetworkError is a request that never produced a response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// alertMessage picks the description shown for a failed submission.
func alertMessage(err error, online bool) string {
	if !online {
		return MsgOffline
	}
	if err == nil || err.Error() == "" {
		return MsgUnknownFailure
	}
	return err.Error()
}

// outcome names an error for metrics and logs.
func outcome(err error) string {
	switch err.(type) {
	case nil:
		return "success"
	case *ValidationError:
		return "validation"
	case *TransportError:
		return "transport"
	case *UnexpectedContentTypeError:
		return "content_type"
	case *ParseError:
		return "parse"
	case *ApplicationError:
		return "application"
	case *NetworkError:
		return "network"
	default:
		return "other"
	}
}
