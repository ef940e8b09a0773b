package materials

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	xerrors "VoxelBench/internal/errors"
)

// 材质注册表相关错误码。
const (
	CodeUnknownMaterial xerrors.Code = "UNKNOWN_MATERIAL"
)

// ErrUnknownMaterial 表示操作引用了注册表中不存在的材质。
var ErrUnknownMaterial = xerrors.New(CodeUnknownMaterial, "material not in registry")

func init() {
	xerrors.Register(CodeUnknownMaterial, xerrors.Attributes{
		Message:   "material not in registry",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

//go:embed palette.yaml
var paletteRaw []byte

// Registry 保存可被放置操作引用的材质全集。
type Registry struct {
	known map[string]struct{}
}

// NewRegistry 基于给定材质名构建注册表。名称会被归一化为小写并
// 去掉命名空间前缀。
func NewRegistry(names []string) *Registry {
	r := &Registry{known: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if n := Normalize(name); n != "" {
			r.known[n] = struct{}{}
		}
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default 返回内置材质清单构建的注册表。
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		var file struct {
			Blocks []string `yaml:"blocks"`
		}
		if err := yaml.Unmarshal(paletteRaw, &file); err != nil {
			defaultErr = fmt.Errorf("解析内置材质清单失败: %w", err)
			return
		}
		if len(file.Blocks) == 0 {
			defaultErr = fmt.Errorf("内置材质清单为空")
			return
		}
		defaultReg = NewRegistry(file.Blocks)
	})
	return defaultReg, defaultErr
}

// Extend 返回一个包含原有材质与额外材质的新注册表，原注册表不变。
func (r *Registry) Extend(names []string) *Registry {
	out := &Registry{known: make(map[string]struct{}, r.Size()+len(names))}
	if r != nil {
		for n := range r.known {
			out.known[n] = struct{}{}
		}
	}
	for _, name := range names {
		if n := Normalize(name); n != "" {
			out.known[n] = struct{}{}
		}
	}
	return out
}

// Known 判断材质是否在注册表中。
func (r *Registry) Known(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.known[Normalize(name)]
	return ok
}

// Check 校验材质，未注册时返回 UNKNOWN_MATERIAL。
func (r *Registry) Check(name string) error {
	if r.Known(name) {
		return nil
	}
	return xerrors.Wrap(CodeUnknownMaterial, ErrUnknownMaterial, "material "+strconv.Quote(name))
}

// Size 返回注册材质数量。
func (r *Registry) Size() int {
	if r == nil {
		return 0
	}
	return len(r.known)
}

// Normalize 把材质名归一化：小写、去空白、去命名空间前缀。
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, rest, ok := strings.Cut(name, ":"); ok {
		return rest
	}
	return name
}

// Set 是一个智能体被允许使用的材质白名单。
type Set struct {
	allowed map[string]struct{}
}

// NewSet 构建白名单；空清单表示不允许任何材质。
func NewSet(names []string) *Set {
	s := &Set{allowed: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if n := Normalize(name); n != "" {
			s.allowed[n] = struct{}{}
		}
	}
	return s
}

// Allows 判断白名单是否允许该材质。nil 白名单视为不设限制。
func (s *Set) Allows(name string) bool {
	if s == nil {
		return true
	}
	_, ok := s.allowed[Normalize(name)]
	return ok
}

// Names 返回白名单内容，顺序不作保证。
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.allowed))
	for n := range s.allowed {
		out = append(out, n)
	}
	return out
}
