package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// 业务错误码，按 HTTP 语义分段
const (
	CodeInvalidInput        = 40000
	CodeInvalidGeofence     = 40001
	CodeNoContacts          = 40002
	CodeNotFound            = 40400
	CodeConflict            = 40900
	CodeTooManyRequests     = 42900
	CodeInternal            = 50000
	CodeDispatchFailed      = 50201
	CodeLocationUnavailable = 50301
	CodePlatformUnsupported = 50101
)

// Error is a coded error carrying the call stack at creation time.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Err     error      `json:"-"` // 原始错误，不序列化
	Stack   string     `json:"stack,omitempty"`
	Context []KeyValue `json:"context,omitempty"`

	// generic 为 true 的哨兵按错误码匹配整类错误
	generic bool
}

// KeyValue represents a key-value pair for context
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a generic sentinel (ErrNoContacts etc.) by code, any other
// *Error by code and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code == 0 || e.Code != t.Code {
		return false
	}
	return t.generic || e.Message == t.Message
}

// WithCode creates a new error with code
func WithCode(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// WithCodef creates a new error with code and formatted message
func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// Wrap wraps err and inherits its code when err is coded.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    GetCode(err),
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    GetCode(err),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
}

// WrapCode wraps err under an explicit code.
func WrapCode(err error, code int, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

func New(message string) *Error {
	return &Error{
		Message: message,
		Stack:   captureStack(),
	}
}

func Errorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// WithContext returns a copy of e with one more key/value attached.
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}
	return e.clone(KeyValue{Key: key, Value: value})
}

// WithContexts adds multiple contexts to an error
func (e *Error) WithContexts(kv map[string]string) *Error {
	if e == nil || len(kv) == 0 {
		return e
	}
	extra := make([]KeyValue, 0, len(kv))
	for k, v := range kv {
		extra = append(extra, KeyValue{Key: k, Value: v})
	}
	return e.clone(extra...)
}

// clone 复制错误实例，避免修改共享的哨兵错误
func (e *Error) clone(extra ...KeyValue) *Error {
	ctx := make([]KeyValue, 0, len(e.Context)+len(extra))
	ctx = append(ctx, e.Context...)
	ctx = append(ctx, extra...)
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Stack:   e.Stack,
		Context: ctx,
	}
}

func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// 去掉 captureStack 和构造函数自身的帧
	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return strings.TrimSpace(stack)
}

// GetCode returns the first non-zero code found along the wrap chain.
func GetCode(err error) int {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return 0
		}
		if e.Code != 0 {
			return e.Code
		}
		err = e.Err
	}
	return 0
}

// GetMessage returns the error message
func GetMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// GetStack returns the error stack trace
func GetStack(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Stack
	}
	return ""
}

// Is reports whether target appears in err's chain.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As re-exported so callers need only this package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Cause returns the innermost error
func Cause(err error) error {
	for err != nil {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}

// Format implements fmt.Formatter
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
