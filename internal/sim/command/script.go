package command

import (
	"strings"

	"VoxelBench/internal/sim/voxel"
)

// Line 是脚本中一条被保留下来的原始命令行。
type Line struct {
	Number int    // 原始文本中的行号（从 1 开始）
	Text   string // 去掉围栏和空白后的命令文本
}

// SplitScript 把模型产出的原始文本切成待解析的命令行。
// 围栏标记（``` 开头的行）、空行以及 "#"、"//" 注释行会被剔除，
// 剩余行保留原始行号以便诊断。
func SplitScript(text string) []Line {
	var out []Line
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "```") {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		out = append(out, Line{Number: i + 1, Text: line})
	}
	return out
}

// Render 把校验通过的操作流还原成命令行列表，逐行发给游戏端即可原样执行。
// 输出顺序与操作顺序一致。
func Render(ops []voxel.Op) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.String())
	}
	return out
}
