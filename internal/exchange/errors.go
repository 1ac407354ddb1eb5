package exchange

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrNotSupported = errors.New("not supported by gateway")

// TransientError - сеть, rate limit, 5xx. Можно повторить тот же запрос.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError - биржа отказала именно этой форме запроса. Повтор бесполезен.
type RejectedError struct {
	Op   string
	Code string
	Msg  string
}

func (e *RejectedError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: rejected: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: rejected: code=%s msg=%s", e.Op, e.Code, e.Msg)
}

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

func Rejected(op, code, format string, args ...any) error {
	return &RejectedError{Op: op, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}
