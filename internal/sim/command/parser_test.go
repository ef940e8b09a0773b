package command

import (
	"errors"
	"testing"

	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/sim/voxel"
)

func TestParseLineSetblock(t *testing.T) {
	op, err := ParseLine("setblock 1 2 3 minecraft:stone")
	if err != nil {
		t.Fatalf("parse setblock: %v", err)
	}
	if op.Kind != voxel.OpSetBlock {
		t.Fatalf("unexpected kind: %v", op.Kind)
	}
	if op.Pos != (voxel.Vec3i{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("unexpected position: %v", op.Pos)
	}
	if op.Block.Name != "stone" {
		t.Fatalf("命名空间前缀应被归一化: %q", op.Block.Name)
	}
}

func TestParseLineOptionalSlashAndCase(t *testing.T) {
	op, err := ParseLine("  /SETBLOCK 0 0 0 stone  ")
	if err != nil {
		t.Fatalf("parse with slash: %v", err)
	}
	if op.Block.Name != "stone" {
		t.Fatalf("unexpected block: %q", op.Block.Name)
	}
}

func TestParseLineFillNormalizesCorners(t *testing.T) {
	op, err := ParseLine("fill 5 1 5 -1 0 2 glass")
	if err != nil {
		t.Fatalf("parse fill: %v", err)
	}
	if op.Kind != voxel.OpFill {
		t.Fatalf("unexpected kind: %v", op.Kind)
	}
	if op.Min != (voxel.Vec3i{X: -1, Y: 0, Z: 2}) || op.Max != (voxel.Vec3i{X: 5, Y: 1, Z: 5}) {
		t.Fatalf("两个端点应被逐分量规范化: min=%v max=%v", op.Min, op.Max)
	}
	if got := op.Volume(); got != 7*2*4 {
		t.Fatalf("unexpected volume: %d", got)
	}
}

func TestParseLineBlockStates(t *testing.T) {
	op, err := ParseLine("setblock 0 0 0 oak_stairs[facing=north,half=top]")
	if err != nil {
		t.Fatalf("parse with states: %v", err)
	}
	if op.Block.Name != "oak_stairs" {
		t.Fatalf("unexpected block name: %q", op.Block.Name)
	}
	if op.Block.States["facing"] != "north" || op.Block.States["half"] != "top" {
		t.Fatalf("unexpected states: %v", op.Block.States)
	}
	// 状态键按字典序输出，保证可复现。
	if got := op.Block.String(); got != "oak_stairs[facing=north,half=top]" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestParseLineMalformed(t *testing.T) {
	cases := []string{
		"",
		"teleport 1 2 3",
		"setblock 1 2 stone",
		"setblock a 2 3 stone",
		"fill 0 0 0 1 1 stone",
		"setblock 0 0 0 stone[facing=north",
		"setblock 0 0 0 stone[facing]",
		"setblock 0 0 0 [facing=north]",
	}
	for _, line := range cases {
		_, err := ParseLine(line)
		if err == nil {
			t.Errorf("ParseLine(%q) 应返回错误", line)
			continue
		}
		if xerrors.CodeOf(err) != CodeMalformedCommand {
			t.Errorf("ParseLine(%q) 错误码 = %s", line, xerrors.CodeOf(err))
		}
	}
}

func TestParseLineNeverPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("ParseLine panicked: %v", r)
		}
	}()
	inputs := []string{"[[[", "fill", "setblock 1 1 1 ]", "///", "setblock \x00 1 1 stone"}
	for _, line := range inputs {
		_, _ = ParseLine(line)
	}
}

func TestSplitScriptFiltersNoise(t *testing.T) {
	script := "```mcfunction\n" +
		"# build the letter\n" +
		"setblock 0 0 0 stone\n" +
		"\n" +
		"// second row\n" +
		"fill 0 0 1 4 0 1 glass\n" +
		"```\n"
	lines := SplitScript(script)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Number != 3 || lines[1].Number != 6 {
		t.Fatalf("应保留原始行号: %+v", lines)
	}
	if lines[0].Text != "setblock 0 0 0 stone" {
		t.Fatalf("unexpected first line: %q", lines[0].Text)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	input := []string{
		"setblock 1 2 3 stone",
		"fill 0 0 0 2 0 2 white_wool",
	}
	ops := make([]voxel.Op, 0, len(input))
	for _, line := range input {
		op, err := ParseLine(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		ops = append(ops, op)
	}
	rendered := Render(ops)
	if len(rendered) != len(input) {
		t.Fatalf("unexpected length: %d", len(rendered))
	}
	for i, line := range rendered {
		if line != input[i] {
			t.Errorf("line %d: got %q want %q", i, line, input[i])
		}
	}
}

func TestMalformedErrorCarriesLine(t *testing.T) {
	_, err := ParseLine("teleport 1 2 3")
	var xe *xerrors.Error
	if !errors.As(err, &xe) {
		t.Fatalf("expected *xerrors.Error, got %T", err)
	}
	if xe.Metadata()["line"] != "teleport 1 2 3" {
		t.Fatalf("错误应携带原始行文本: %v", xe.Metadata())
	}
}
