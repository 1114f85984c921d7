package rag

import (
	"errors"
	"fmt"
)

// Kind classifica os erros expostos pelo gateway.
type Kind string

const (
	KindInvalidArgument Kind = "InvalidArgument"
	KindInitialization  Kind = "InitializationError"
	KindModelInvocation Kind = "ModelInvocationError"
	KindRetrieval       Kind = "RetrievalError"
)

// Error carrega o tipo do erro, o endpoint remoto (quando houver) e a causa.
type Error struct {
	Kind     Kind
	Endpoint string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Endpoint != "" {
		msg += " [" + e.Endpoint + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewInvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func NewInitializationError(component string, err error) *Error {
	return &Error{Kind: KindInitialization, Message: "could not initialize " + component, Err: err}
}

func NewModelInvocationError(endpoint string, err error) *Error {
	return &Error{Kind: KindModelInvocation, Endpoint: endpoint, Message: "model invocation failed", Err: err}
}

func NewRetrievalError(err error) *Error {
	r := &Error{Kind: KindRetrieval, Message: "similarity search failed", Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		r.Endpoint = inner.Endpoint
	}
	return r
}

// KindOf devolve o Kind do *Error mais externo da cadeia, ou "" se não houver.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
