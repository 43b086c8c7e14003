package settings

import (
	"context"
	"fmt"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/config"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// KeyLogLevel 支持热更新的日志级别 key
const KeyLogLevel = "log.level"

// Override 在规范化与校验之前修改配置，例如应用命令行参数
type Override func(s *Settings)

// Load 注册默认值、加载配置、应用 overrides 并校验
//
// 加载失败返回 config 包的错误；校验失败返回 *lifecycle.ConfigurationError。
func Load(ctx context.Context, loader config.Loader, overrides ...Override) (*Settings, error) {
	if loader == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config loader is required")
	}

	RegisterDefaults(loader)
	if err := loader.Load(ctx); err != nil {
		return nil, xerrors.Wrap(err, "load settings")
	}

	var s Settings
	if err := loader.Unmarshal(&s); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal settings")
	}
	for _, override := range overrides {
		override(&s)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Watch 监听 log.level，配置文件变更时调整 logger 级别，ctx 结束时退出
func Watch(ctx context.Context, loader config.Loader, logger clog.Logger) error {
	events, err := loader.Watch(ctx, KeyLogLevel)
	if err != nil {
		return xerrors.Wrap(err, "watch log level")
	}

	go func() {
		for ev := range events {
			raw := fmt.Sprint(ev.Value)
			level, err := clog.ParseLevel(raw)
			if err != nil {
				logger.Warn("ignoring invalid log level", clog.String("level", raw))
				continue
			}
			if err := logger.SetLevel(level); err != nil {
				logger.Warn("failed to change log level", clog.Error(err))
				continue
			}
			logger.Info("log level changed",
				clog.String("from", fmt.Sprint(ev.OldValue)),
				clog.String("to", level.String()))
		}
	}()
	return nil
}
