package materials

import (
	"testing"

	xerrors "VoxelBench/internal/errors"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}
	if reg.Size() == 0 {
		t.Fatal("内置注册表不应为空")
	}
	for _, name := range []string{"stone", "minecraft:stone", "WHITE_WOOL", " glass "} {
		if !reg.Known(name) {
			t.Errorf("registry should know %q", name)
		}
	}
	if reg.Known("unobtainium") {
		t.Fatal("registry should not know unobtainium")
	}
}

func TestRegistryCheck(t *testing.T) {
	reg := NewRegistry([]string{"stone"})
	if err := reg.Check("minecraft:stone"); err != nil {
		t.Fatalf("check known material: %v", err)
	}
	err := reg.Check("bedrock")
	if err == nil {
		t.Fatal("未注册材质应返回错误")
	}
	if xerrors.CodeOf(err) != CodeUnknownMaterial {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestRegistryExtend(t *testing.T) {
	base := NewRegistry([]string{"stone"})
	extended := base.Extend([]string{"minecraft:custom_block"})

	if !extended.Known("custom_block") || !extended.Known("stone") {
		t.Fatal("扩展后的注册表应同时包含新旧材质")
	}
	if base.Known("custom_block") {
		t.Fatal("原注册表不应被修改")
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"minecraft:stone": "stone",
		"STONE":           "stone",
		"  Glass  ":       "glass",
		"stone":           "stone",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetSemantics(t *testing.T) {
	var unrestricted *Set
	if !unrestricted.Allows("anything") {
		t.Fatal("nil 白名单视为不设限制")
	}

	empty := NewSet(nil)
	if empty.Allows("stone") {
		t.Fatal("空白名单不允许任何材质")
	}

	set := NewSet([]string{"minecraft:stone", "white_wool"})
	if !set.Allows("STONE") || !set.Allows("white_wool") {
		t.Fatal("白名单应对归一化后的名称生效")
	}
	if set.Allows("glass") {
		t.Fatal("glass 不在白名单内")
	}
	if len(set.Names()) != 2 {
		t.Fatalf("unexpected names: %v", set.Names())
	}
}
