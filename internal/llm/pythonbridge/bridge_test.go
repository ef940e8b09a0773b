package pythonbridge

import (
	"path/filepath"
	"testing"
)

func TestNewClientRequiresScript(t *testing.T) {
	if _, err := NewClient("python3", "", "", ""); err == nil {
		t.Fatal("缺少脚本路径应返回错误")
	}
	client, err := NewClient("", "bridge.py", "", "demo-model")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.pythonExec != "python3" {
		t.Fatalf("unexpected default executable: %s", client.pythonExec)
	}
}

func TestResolveScriptPath(t *testing.T) {
	abs := filepath.Join("/opt", "bridge.py")
	cases := []struct {
		baseDir string
		script  string
		want    string
	}{
		{"", "", ""},
		{"/base", abs, abs},
		{"", "bridge.py", "bridge.py"},
		{"/base", "scripts/bridge.py", filepath.Join("/base", "scripts", "bridge.py")},
	}
	for _, tc := range cases {
		if got := ResolveScriptPath(tc.baseDir, tc.script); got != tc.want {
			t.Errorf("ResolveScriptPath(%q, %q) = %q, want %q", tc.baseDir, tc.script, got, tc.want)
		}
	}
}

func TestLastLine(t *testing.T) {
	cases := map[string]string{
		"":                         "",
		"single":                   "single",
		"progress...\n{\"a\":1}\n": `{"a":1}`,
		"line1\n\n   \nline2\n\n":  "line2",
	}
	for in, want := range cases {
		if got := lastLine(in); got != want {
			t.Errorf("lastLine(%q) = %q, want %q", in, got, want)
		}
	}
}
