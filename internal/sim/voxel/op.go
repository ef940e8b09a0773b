package voxel

import "fmt"

// OpKind 区分两种放置操作。
type OpKind int

const (
	// OpSetBlock 写入单个格子。
	OpSetBlock OpKind = iota
	// OpFill 写入一个闭区间盒子内的所有格子。
	OpFill
)

// Op 是经过解析的放置操作。Fill 的 Min/Max 已逐分量规范化（Min <= Max）。
type Op struct {
	Kind  OpKind
	Pos   Vec3i // SetBlock 使用
	Min   Vec3i // Fill 使用
	Max   Vec3i // Fill 使用
	Block Block
}

// NewSetBlock 构造单格写入操作。
func NewSetBlock(pos Vec3i, block Block) Op {
	return Op{Kind: OpSetBlock, Pos: pos, Block: block}
}

// NewFill 构造盒子填充操作，两个端点可以以任意顺序给出。
func NewFill(a, b Vec3i, block Block) Op {
	min := Vec3i{X: minInt(a.X, b.X), Y: minInt(a.Y, b.Y), Z: minInt(a.Z, b.Z)}
	max := Vec3i{X: maxInt(a.X, b.X), Y: maxInt(a.Y, b.Y), Z: maxInt(a.Z, b.Z)}
	return Op{Kind: OpFill, Min: min, Max: max, Block: block}
}

// Volume 返回操作覆盖的格子数量。
func (op Op) Volume() int {
	switch op.Kind {
	case OpSetBlock:
		return 1
	case OpFill:
		return (op.Max.X - op.Min.X + 1) * (op.Max.Y - op.Min.Y + 1) * (op.Max.Z - op.Min.Z + 1)
	default:
		return 0
	}
}

// String 按命令语法输出操作，可直接发给游戏端执行。
func (op Op) String() string {
	switch op.Kind {
	case OpSetBlock:
		return fmt.Sprintf("setblock %d %d %d %s", op.Pos.X, op.Pos.Y, op.Pos.Z, op.Block.String())
	case OpFill:
		return fmt.Sprintf("fill %d %d %d %d %d %d %s",
			op.Min.X, op.Min.Y, op.Min.Z, op.Max.X, op.Max.Y, op.Max.Z, op.Block.String())
	default:
		return ""
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
