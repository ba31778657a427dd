package extract

import "testing"

func TestNormalizeEntryPath(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "etc/passwd",
		"./a/./b":          "a/b",
		"/abs/path":        "abs/path",
		"a/../../b":        "b",
		"plain.txt":        "plain.txt",
		"a/b/../c":         "a/c",
	}

	for input, want := range cases {
		if got := normalizeEntryPath(input); got != want {
			t.Errorf("normalizeEntryPath(%q) = %q, want %q", input, got, want)
		}
	}
}
