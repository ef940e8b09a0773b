package voxel

import (
	"fmt"
	"sort"
	"strings"

	xerrors "VoxelBench/internal/errors"
)

// EmptyBlock 是未被任何操作写入的格子的哨兵标识。
const EmptyBlock = "empty"

// AirBlock 放置后等价于清空格子。
const AirBlock = "air"

// Vec3i 表示世界中的整数坐标。
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// String 输出形如 "(x, y, z)" 的坐标描述。
func (v Vec3i) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
}

// Block 描述一个方块标识：材质名加上可选的朝向/状态修饰。
// 修饰键值会被完整保留，但不参与任何打分。
type Block struct {
	Name   string            `json:"name"`
	States map[string]string `json:"states,omitempty"`
}

// IsEmpty 判断方块是否为空哨兵。
func (b Block) IsEmpty() bool {
	return b.Name == "" || b.Name == EmptyBlock
}

// Clears 判断写入该方块是否等价于清空格子。
func (b Block) Clears() bool {
	return b.IsEmpty() || b.Name == AirBlock
}

// String 按命令语法输出方块标识，例如 "oak_stairs[facing=north,half=top]"。
// 状态键按字典序排列，保证输出可复现。
func (b Block) String() string {
	if len(b.States) == 0 {
		return b.Name
	}
	keys := make([]string, 0, len(b.States))
	for k := range b.States {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+b.States[k])
	}
	return b.Name + "[" + strings.Join(parts, ",") + "]"
}

// Extent 描述世界的有界范围，Min/Max 均为闭区间端点。
type Extent struct {
	Min Vec3i `json:"min"`
	Max Vec3i `json:"max"`
}

// DefaultExtent 返回默认的建造范围。
func DefaultExtent() Extent {
	return Extent{
		Min: Vec3i{X: -128, Y: 0, Z: -128},
		Max: Vec3i{X: 127, Y: 127, Z: 127},
	}
}

// Valid 检查范围各分量是否满足 Min <= Max。
func (e Extent) Valid() bool {
	return e.Min.X <= e.Max.X && e.Min.Y <= e.Max.Y && e.Min.Z <= e.Max.Z
}

// Contains 判断坐标是否落在范围内。
func (e Extent) Contains(p Vec3i) bool {
	return p.X >= e.Min.X && p.X <= e.Max.X &&
		p.Y >= e.Min.Y && p.Y <= e.Max.Y &&
		p.Z >= e.Min.Z && p.Z <= e.Max.Z
}

// ContainsBox 判断整个盒子（两端点均已规范化）是否落在范围内。
func (e Extent) ContainsBox(min, max Vec3i) bool {
	return e.Contains(min) && e.Contains(max)
}

// 世界模型相关错误码。
const (
	CodeOutOfBounds xerrors.Code = "OUT_OF_BOUNDS"
)

// ErrOutOfBounds 表示操作引用了范围外的坐标，操作被整体拒绝。
var ErrOutOfBounds = xerrors.New(CodeOutOfBounds, "coordinate outside world extent")

func init() {
	xerrors.Register(CodeOutOfBounds, xerrors.Attributes{
		Message:   "coordinate outside world extent",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}
