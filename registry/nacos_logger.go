package registry

import (
	"fmt"

	"github.com/ceyewan/nacos-mcp/clog"
)

// sdkLogger 把 nacos-sdk-go 的日志转到 clog
//
// SDK 的 Info 日志随每次推送输出，降为 Debug。
type sdkLogger struct {
	l clog.Logger
}

func (s sdkLogger) Info(args ...any)  { s.l.Debug(fmt.Sprint(args...)) }
func (s sdkLogger) Warn(args ...any)  { s.l.Warn(fmt.Sprint(args...)) }
func (s sdkLogger) Error(args ...any) { s.l.Error(fmt.Sprint(args...)) }
func (s sdkLogger) Debug(args ...any) { s.l.Debug(fmt.Sprint(args...)) }

func (s sdkLogger) Infof(format string, args ...any)  { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Warnf(format string, args ...any)  { s.l.Warn(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Errorf(format string, args ...any) { s.l.Error(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Debugf(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
