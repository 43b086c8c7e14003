package settings

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/lifecycle"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator 字段名使用 mapstructure 标签，错误信息与配置 key 一致
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate 校验配置，失败时返回 *lifecycle.ConfigurationError
func (s *Settings) Validate() error {
	if err := structValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if xerrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &lifecycle.ConfigurationError{
				Field:  fieldKey(fe.Namespace()),
				Reason: describe(fe),
			}
		}
		return &lifecycle.ConfigurationError{Reason: err.Error()}
	}

	if err := s.validateTransport(); err != nil {
		return err
	}
	if err := s.validateRegistry(); err != nil {
		return err
	}
	if _, err := clog.ParseLevel(s.Log.Level); err != nil {
		return &lifecycle.ConfigurationError{Field: "log.level", Reason: err.Error()}
	}
	for k := range s.Service.Metadata {
		switch k {
		case registry.MetadataTransport, registry.MetadataProtocol, registry.MetadataInstance:
			return &lifecycle.ConfigurationError{Field: "service.metadata", Reason: fmt.Sprintf("key %q is reserved", k)}
		}
	}
	return nil
}

func (s *Settings) validateTransport() error {
	kind, err := registry.ParseTransportKind(s.Transport.Kind)
	if err != nil {
		return &lifecycle.ConfigurationError{Field: "transport.kind", Reason: fmt.Sprintf("unknown transport %q", s.Transport.Kind)}
	}

	switch kind {
	case registry.TransportStdio:
		if s.Transport.Port != 0 {
			return &lifecycle.ConfigurationError{Field: "transport.port", Reason: "stdio transport does not take a port"}
		}
		if s.Transport.MountPath != "" {
			return &lifecycle.ConfigurationError{Field: "transport.mount_path", Reason: "stdio transport does not take a mount path"}
		}
	case registry.TransportStreaming:
		if s.Transport.Port == 0 {
			return &lifecycle.ConfigurationError{Field: "transport.port", Reason: "streaming transport requires a port"}
		}
		if p := s.Transport.MountPath; p != "" && !strings.HasPrefix(p, "/") {
			return &lifecycle.ConfigurationError{Field: "transport.mount_path", Reason: fmt.Sprintf("path %q must start with /", p)}
		}
	}
	return nil
}

func (s *Settings) validateRegistry() error {
	switch s.Registry.Driver {
	case DriverNacos:
		if strings.TrimSpace(s.Nacos.Endpoint) == "" {
			return &lifecycle.ConfigurationError{Field: "nacos.endpoint", Reason: "endpoint is required"}
		}
		reg, err := registry.NewNacos(s.NacosConfig())
		if err != nil {
			return &lifecycle.ConfigurationError{Field: "nacos", Reason: err.Error()}
		}
		_ = reg.Close()
	case DriverEtcd:
		cfg := s.EtcdConnectorConfig()
		if err := cfg.Validate(); err != nil {
			return &lifecycle.ConfigurationError{Field: "etcd.endpoints", Reason: err.Error()}
		}
	}
	return nil
}

// fieldKey 去掉根结构体名，"Settings.nacos.endpoint" -> "nacos.endpoint"
func fieldKey(namespace string) string {
	_, key, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return key
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("invalid value %v (%s)", fe.Value(), fe.Tag())
	}
}
