package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// clogHandler 封装 slog.Handler，提供动态级别和 Flush 能力
type clogHandler struct {
	slog.Handler
	levelVar *slog.LevelVar
	file     *os.File // Output 为文件路径时持有，用于 Flush
}

// newHandler 按 writer -> handler options -> json/text handler 的顺序构造 handler
func newHandler(config *Config, o *options) (*clogHandler, error) {
	w, file, err := resolveWriter(config, o)
	if err != nil {
		return nil, err
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: newReplaceAttr(config),
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &clogHandler{Handler: handler, levelVar: levelVar, file: file}, nil
}

// resolveWriter 根据配置创建输出 writer
func resolveWriter(config *Config, o *options) (io.Writer, *os.File, error) {
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "buffer":
		if o.buffer == nil {
			return nil, nil, fmt.Errorf("buffer output requires options.buffer to be set")
		}
		return o.buffer, nil, nil
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
}

// newReplaceAttr 统一 Level/Time/Source 字段的输出格式
func newReplaceAttr(config *Config) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.LevelKey:
			if level, ok := a.Value.Any().(slog.Level); ok && level > slog.LevelError {
				a.Value = slog.StringValue("FATAL")
			}
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if source, ok := a.Value.Any().(*slog.Source); ok {
				return slog.String("caller", fmt.Sprintf("%s:%d", trimSourcePath(source.File, config.SourceRoot), source.Line))
			}
		}
		return a
	}
}

// trimSourcePath 根据 sourceRoot 裁剪调用文件路径
func trimSourcePath(fileName, sourceRoot string) string {
	if sourceRoot != "" {
		if rel, err := filepath.Rel(sourceRoot, fileName); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	if idx := strings.Index(fileName, "nacos-mcp"); idx != -1 {
		return fileName[idx:]
	}
	return filepath.Base(fileName)
}

// flush 文件输出时执行 fsync，标准输出无需处理
func (h *clogHandler) flush() {
	if h.file != nil {
		_ = h.file.Sync()
	}
}
