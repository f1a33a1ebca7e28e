package recommend

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/BoxRec/internal/domain"
)

// Error 是流水线的终止错误：Reason 决定对外文案与状态码，Err 只用于日志。
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message 返回对外展示的固定文案（不包含内部错误细节）。
func (e *Error) Message() string { return domain.ReasonMessage(e.Reason) }

// ReasonOf 从 err 链中取出 reason；不是 *Error 时返回空串。
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func fail(reason string, err error) error { return &Error{Reason: reason, Err: err} }
