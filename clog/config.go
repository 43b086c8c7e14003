package clog

import (
	"fmt"
	"strings"
)

// timeFormat 日志时间格式（毫秒精度）
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config 日志配置结构
//
// 典型配置示例（YAML）：
//
//	log:
//	  level: info
//	  format: json
//	  output: stderr
//	  add_source: false
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`                 // debug|info|warn|error|fatal
	Format     string `json:"format" yaml:"format" mapstructure:"format"`              // json|console
	Output     string `json:"output" yaml:"output" mapstructure:"output"`              // stdout|stderr|<file path>
	AddSource  bool   `json:"addSource" yaml:"addSource" mapstructure:"add_source"`    // 是否输出调用位置
	SourceRoot string `json:"sourceRoot" yaml:"sourceRoot" mapstructure:"source_root"` // 用于裁剪文件路径
}

// validate 为空值设置默认值并检查 Level 和 Format 是否有效（内部使用）
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	return nil
}
