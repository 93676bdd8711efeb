package kernels

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestPreprocess(t *testing.T) {
	imports := fstest.MapFS{
		"lib.wgsl":   {Data: []byte("fn lib() {}\n")},
		"outer.wgsl": {Data: []byte("#import lib\nfn outer() {}\n")},
	}
	tests := []struct {
		name    string
		src     string
		defines []string
		want    string
	}{
		{
			name: "plain",
			src:  "fn main() {}\n",
			want: "fn main() {}\n",
		},
		{
			name:    "ifdef taken",
			src:     "#ifdef derivative\nvar d: f32;\n#else\nvar n: f32;\n#endif\n",
			defines: []string{"derivative"},
			want:    "var d: f32;\n",
		},
		{
			name: "ifdef not taken",
			src:  "#ifdef derivative\nvar d: f32;\n#else\nvar n: f32;\n#endif\n",
			want: "var n: f32;\n",
		},
		{
			name: "ifndef",
			src:  "#ifndef derivative\nvar n: f32;\n#endif // derivative\n",
			want: "var n: f32;\n",
		},
		{
			name: "nested import",
			src:  "#import outer\nfn main() {}\n",
			want: "fn lib() {}\n\nfn outer() {}\n\nfn main() {}\n",
		},
		{
			name: "import in inactive branch",
			src:  "#ifdef missing\n#import lib\n#endif\nfn main() {}\n",
			want: "fn main() {}\n",
		},
		{
			name: "module-scope let",
			src:  "let N: u32 = 4u;\nfn f() {\n    let x = 1;\n}\n",
			want: "const N: u32 = 4u;\nfn f() {\n    let x = 1;\n}\n",
		},
		{
			name: "commented directive",
			src:  "// #ifdef nothing\nfn main() {}\n",
			want: "// #ifdef nothing\nfn main() {}\n",
		},
		{
			name: "enable",
			src:  "#enable f16;\nfn main() {}\n",
			want: "enable f16;\nfn main() {}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defines := map[string]struct{}{}
			for _, d := range tt.defines {
				defines[d] = struct{}{}
			}
			p := Preprocessor{Imports: imports, Defines: defines}
			got, err := p.Preprocess([]byte(tt.src), tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got := string(Postprocess(got)); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"mismatched endif", "#endif\n", "mismatched endif"},
		{"stray else", "#else\n", "#else without"},
		{"double else", "#ifdef a\n#else\n#else\n#endif\n", "second else"},
		{"unknown directive", "#define x\n", "unknown preprocessor directive"},
		{"unterminated", "#ifdef a\n", "unterminated"},
		{"missing import", "#import nope\n", "couldn't import"},
		{"directive not at start", "var x: f32; #ifdef a\n", "first non-whitespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Preprocessor{Imports: fstest.MapFS{}}
			_, err := p.Preprocess([]byte(tt.src), "test.wgsl")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got error %v, want one containing %q", err, tt.want)
			}
		})
	}
}
