package speech

import (
	"errors"
	"fmt"
)

// ErrTimeout 整次语音交换超出配置时限。
var ErrTimeout = errors.New("speech exchange timed out")

// EngineError 引擎返回的业务错误（code 非 0）。
type EngineError struct {
	Code    int
	Sid     string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("speech engine error %d (sid=%s): %s", e.Code, e.Sid, e.Message)
}
