package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// New 创建配置加载器，需调用 Load 后才能读取配置
func New(opts ...Option) (Loader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.file == "" && o.name == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config name or file is required")
	}

	return &loader{
		v:         viper.New(),
		opts:      o,
		logger:    o.logger,
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}, nil
}

// loader 基于 viper 的 Loader 实现
type loader struct {
	v         *viper.Viper
	opts      *options
	logger    clog.Logger
	mu        sync.RWMutex
	watches   map[string][]chan Event
	oldValues map[string]any
}

func (l *loader) SetDefault(key string, value any) {
	l.v.SetDefault(key, value)
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(ctx context.Context) error {
	// 1. 环境变量（最高优先级），key 中的 "." 映射为 "_"
	l.v.SetEnvPrefix(l.opts.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// 2. .env 文件只补充尚未设置的环境变量
	if err := l.loadDotEnv(); err != nil {
		l.logger.Debug("no .env file loaded", clog.Error(err))
	}

	// 3. 基础配置文件
	if l.opts.file != "" {
		l.v.SetConfigFile(l.opts.file)
		if err := l.v.ReadInConfig(); err != nil {
			return wrapLoadError(err, l.opts.file)
		}
	} else {
		l.v.SetConfigName(l.opts.name)
		l.v.SetConfigType(l.opts.fileType)
		for _, path := range l.opts.paths {
			l.v.AddConfigPath(path)
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return wrapLoadError(err, l.opts.name)
			}
			l.logger.Info("no configuration file found, using defaults and environment",
				clog.String("name", l.opts.name),
				clog.Strings("paths", l.opts.paths))
		}
	}

	// 4. 环境特定配置，例如 NACOS_MCP_ENV=prod 时合并 nacos-mcp.prod.yaml
	if err := l.mergeEnvironmentConfig(); err != nil {
		return err
	}

	if err := l.Validate(); err != nil {
		return err
	}

	l.captureCurrentValues()

	if l.v.ConfigFileUsed() != "" {
		l.v.OnConfigChange(l.notifyWatches)
		l.v.WatchConfig()
	}

	l.logger.Debug("configuration loaded", clog.String("file", l.v.ConfigFileUsed()))
	return nil
}

// loadDotEnv 依次尝试当前目录和搜索路径下的 .env 文件
func (l *loader) loadDotEnv() error {
	candidates := []string{".env"}
	for _, path := range l.opts.paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}
	if l.opts.file != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.opts.file), ".env"))
	}

	var lastErr error
	loaded := false
	for _, candidate := range candidates {
		if err := godotenv.Load(candidate); err != nil {
			lastErr = err
			continue
		}
		loaded = true
	}
	if !loaded {
		return lastErr
	}
	return nil
}

// mergeEnvironmentConfig 合并环境特定配置文件
func (l *loader) mergeEnvironmentConfig() error {
	env := os.Getenv(l.opts.envPrefix + "_ENV")
	if env == "" || l.v.ConfigFileUsed() == "" {
		return nil
	}

	used := l.v.ConfigFileUsed()
	ext := filepath.Ext(used)
	envFile := strings.TrimSuffix(used, ext) + "." + env + ext
	if _, err := os.Stat(envFile); err != nil {
		l.logger.Info("no environment configuration file", clog.String("env", env), clog.String("file", envFile))
		return nil
	}

	f, err := os.Open(envFile)
	if err != nil {
		return wrapLoadError(err, envFile)
	}
	defer f.Close()

	if err := l.v.MergeConfig(f); err != nil {
		return wrapLoadError(err, envFile)
	}
	l.logger.Info("environment configuration merged", clog.String("env", env), clog.String("file", envFile))
	return nil
}

// captureCurrentValues 保存当前值用于变更检测
func (l *loader) captureCurrentValues() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.watches {
		l.oldValues[key] = l.v.Get(key)
	}
}

func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

func (l *loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

func (l *loader) UnmarshalKey(key string, v any) error {
	return l.v.UnmarshalKey(key, v)
}

func (l *loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch 订阅特定 key 的变更，ctx 结束时关闭通道
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	if key == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "watch key is required")
	}

	l.mu.Lock()
	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	l.oldValues[key] = l.v.Get(key)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()

	return ch, nil
}

// removeWatch 移除并关闭监听通道
func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans := l.watches[key]
	for i, c := range chans {
		if c == ch {
			l.watches[key] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
		delete(l.oldValues, key)
	}
}

// Validate 检查必需 key
func (l *loader) Validate() error {
	var missing []string
	for _, key := range l.opts.requiredKeys {
		if !l.v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return xerrors.Wrapf(ErrValidationFailed, "missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// notifyWatches 文件变更时比较新旧值并通知订阅者
func (l *loader) notifyWatches(e fsnotify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, channels := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Source:    "file",
			Timestamp: time.Now(),
		}
		l.oldValues[key] = newValue

		for _, ch := range channels {
			select {
			case ch <- event:
			default:
				l.logger.Warn("watch channel is full, dropping event",
					clog.String("key", key),
					clog.String("file", e.Name))
			}
		}
	}
}
