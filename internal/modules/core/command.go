package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Unit struct{}

type CommandError struct {
	Payload    interface{}
	StatusCode int
	Reason     *string
}

type CommandErrorOption func(*CommandError)

func WithReason(reason string) CommandErrorOption {
	return func(e *CommandError) {
		e.Reason = &reason
	}
}

func NewCommandError(statusCode int, payload interface{}, opts ...CommandErrorOption) CommandError {
	e := CommandError{
		StatusCode: statusCode,
		Payload:    payload,
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// CommandErrorFrom converts a handler error into a CommandError, deriving
// the status code from the ledger error code when there is one.
func CommandErrorFrom(err error, opts ...CommandErrorOption) CommandError {
	var commandErr CommandError
	if errors.As(err, &commandErr) {
		return commandErr
	}

	code, ok := CodeOf(err)
	if !ok {
		return NewCommandError(http.StatusInternalServerError, err, opts...)
	}

	opts = append([]CommandErrorOption{WithReason(string(code))}, opts...)
	return NewCommandError(code.StatusCode(), err, opts...)
}

func (r CommandError) Error() string {
	var values struct {
		Payload    interface{}
		StatusCode int
		Reason     string
	}

	values.Payload = r.Payload
	values.StatusCode = r.StatusCode

	if r.Reason != nil {
		values.Reason = *r.Reason
	}

	return fmt.Sprintf("%+v", values)
}

func (r CommandError) Unwrap() error {
	if err, ok := r.Payload.(error); ok {
		return err
	}
	return nil
}

func (r CommandError) MarshalJSON() ([]byte, error) {
	var body struct {
		StatusCode int    `json:"status_code"`
		Reason     string `json:"reason,omitempty"`
		Message    string `json:"message,omitempty"`
	}

	body.StatusCode = r.StatusCode
	if r.Reason != nil {
		body.Reason = *r.Reason
	}

	switch p := r.Payload.(type) {
	case nil:
	case error:
		body.Message = p.Error()
	case string:
		body.Message = p
	default:
		body.Message = fmt.Sprintf("%v", p)
	}

	return json.Marshal(body)
}
