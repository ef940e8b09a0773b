package command

import (
	"strconv"
	"strings"

	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/sim/voxel"
)

// 命令解析相关错误码。
const (
	CodeMalformedCommand xerrors.Code = "MALFORMED_COMMAND"
)

func init() {
	xerrors.Register(CodeMalformedCommand, xerrors.Attributes{
		Message:   "malformed placement command",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// ParseLine 解析单行放置命令，返回结构化操作或解析错误，绝不抛出异常。
// 支持两种形式：
//
//	setblock x y z block[state1=v1,state2=v2,...]
//	fill x1 y1 z1 x2 y2 z2 block[state...]
//
// 行首的 "/" 是可选的。未知动词、参数个数不符、坐标非整数都会返回
// MALFORMED_COMMAND，错误信息携带原始行文本。
func ParseLine(line string) (voxel.Op, error) {
	raw := line
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "/")

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return voxel.Op{}, malformed(raw, "empty command")
	}

	verb := strings.ToLower(fields[0])
	switch verb {
	case "setblock":
		if len(fields) != 5 {
			return voxel.Op{}, malformed(raw, "setblock expects 4 arguments")
		}
		pos, err := parseVec(fields[1], fields[2], fields[3])
		if err != nil {
			return voxel.Op{}, malformed(raw, err.Error())
		}
		block, err := parseBlock(fields[4])
		if err != nil {
			return voxel.Op{}, malformed(raw, err.Error())
		}
		return voxel.NewSetBlock(pos, block), nil
	case "fill":
		if len(fields) != 8 {
			return voxel.Op{}, malformed(raw, "fill expects 7 arguments")
		}
		from, err := parseVec(fields[1], fields[2], fields[3])
		if err != nil {
			return voxel.Op{}, malformed(raw, err.Error())
		}
		to, err := parseVec(fields[4], fields[5], fields[6])
		if err != nil {
			return voxel.Op{}, malformed(raw, err.Error())
		}
		block, err := parseBlock(fields[7])
		if err != nil {
			return voxel.Op{}, malformed(raw, err.Error())
		}
		return voxel.NewFill(from, to, block), nil
	default:
		return voxel.Op{}, malformed(raw, "unknown verb "+strconv.Quote(verb))
	}
}

func malformed(line, reason string) error {
	return xerrors.New(CodeMalformedCommand, reason,
		xerrors.WithMetadata("line", strings.TrimSpace(line)))
}

func parseVec(xs, ys, zs string) (voxel.Vec3i, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return voxel.Vec3i{}, xerrors.New(CodeMalformedCommand, "non-integer coordinate "+strconv.Quote(xs))
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return voxel.Vec3i{}, xerrors.New(CodeMalformedCommand, "non-integer coordinate "+strconv.Quote(ys))
	}
	z, err := strconv.Atoi(zs)
	if err != nil {
		return voxel.Vec3i{}, xerrors.New(CodeMalformedCommand, "non-integer coordinate "+strconv.Quote(zs))
	}
	return voxel.Vec3i{X: x, Y: y, Z: z}, nil
}

// parseBlock 解析 "name[key=value,...]" 形式的方块标识。
// 方括号内的状态修饰被存为键值映射，不参与打分。
func parseBlock(token string) (voxel.Block, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return voxel.Block{}, xerrors.New(CodeMalformedCommand, "missing block identity")
	}

	open := strings.IndexByte(token, '[')
	if open < 0 {
		if strings.ContainsAny(token, "[]") {
			return voxel.Block{}, xerrors.New(CodeMalformedCommand, "unbalanced brackets in "+strconv.Quote(token))
		}
		return voxel.Block{Name: normalizeName(token)}, nil
	}
	if !strings.HasSuffix(token, "]") {
		return voxel.Block{}, xerrors.New(CodeMalformedCommand, "unbalanced brackets in "+strconv.Quote(token))
	}

	name := token[:open]
	if name == "" {
		return voxel.Block{}, xerrors.New(CodeMalformedCommand, "missing block identity")
	}
	body := token[open+1 : len(token)-1]
	states := make(map[string]string)
	if body != "" {
		for _, pair := range strings.Split(body, ",") {
			key, value, ok := strings.Cut(pair, "=")
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if !ok || key == "" || value == "" {
				return voxel.Block{}, xerrors.New(CodeMalformedCommand, "malformed block state "+strconv.Quote(pair))
			}
			states[key] = value
		}
	}
	if len(states) == 0 {
		states = nil
	}
	return voxel.Block{Name: normalizeName(name), States: states}, nil
}

// normalizeName 去掉命名空间前缀，"minecraft:stone" 与 "stone" 视为同一材质。
func normalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if _, rest, ok := strings.Cut(name, ":"); ok {
		return rest
	}
	return name
}
