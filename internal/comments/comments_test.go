package comments

import "testing"

func TestPageIdentifier(t *testing.T) {
	testCases := []struct {
		url  string
		want string
	}{
		{"https://ci.example.com/job/app/12/testReport/com.example/CalcTest/adds/", "com.example/CalcTest/adds/"},
		{"https://ci.example.com/job/app/12/testReport/", ""},
		{"https://ci.example.com/job/app/12/", ""},
		{"/testReport/a/testReport/b", "a/"},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := PageIdentifier(tc.url); got != tc.want {
			t.Errorf("PageIdentifier(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestWidget(t *testing.T) {
	if w := NewWidget("", "https://x/testReport/a", "a"); w != nil {
		t.Errorf("NewWidget() without shortname = %+v, want nil", w)
	}

	w := NewWidget("kgb427", "https://ci/job/1/testReport/suite/case", "case")
	if w.ScriptURL() != "https://kgb427.disqus.com/embed.js" {
		t.Errorf("ScriptURL() = %q", w.ScriptURL())
	}
	if w.Identifier() != "suite/case" {
		t.Errorf("Identifier() = %q", w.Identifier())
	}
}
