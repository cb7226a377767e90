package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 未调用 Init 时日志函数必须可用（降级为 no-op），
// 否则所有引用本包的测试都会在第一条日志处崩溃。
func TestLoggingBeforeInitIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("before init")
		Infof("before init %d", 1)
		Warnf("before init %s", "w")
		Error("before init", errors.New("boom"))
		Sync()
	})
}
