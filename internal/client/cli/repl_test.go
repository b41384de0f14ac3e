package cli

import (
	"context"
	"testing"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Signup(context.Context) error {
	f.calls = append(f.calls, "signup")
	return nil
}
func (f *fakeExec) Login(context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) List(context.Context) error {
	f.calls = append(f.calls, "list")
	return nil
}
func (f *fakeExec) Upload(context.Context) error {
	f.calls = append(f.calls, "upload")
	return nil
}
func (f *fakeExec) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		for _, v := range a {
			if s, ok := v.(string); ok {
				printed = append(printed, s)
			}
		}
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_Commands(t *testing.T) {
	printed := silence(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" },
		rdr("help\nsignup\nlogin\nhelp\n\nl\nupload\nlogout\nfoobar\nexit\nlist\n"))

	want := []string{"signup", "login", "list", "upload", "logout"}
	if len(exec.calls) != len(want) {
		t.Fatalf("calls %v, want %v", exec.calls, want)
	}
	for i := range want {
		if exec.calls[i] != want[i] {
			t.Fatalf("calls %v, want %v", exec.calls, want)
		}
	}

	var sawUnknown, sawBye bool
	for _, p := range *printed {
		sawUnknown = sawUnknown || p == "Unknown command:"
		sawBye = sawBye || p == "Bye!"
	}
	if !sawUnknown || !sawBye {
		t.Fatalf("output %v", *printed)
	}
}

func TestRunREPL_EOF(t *testing.T) {
	silence(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("list"))

	if len(exec.calls) != 1 || exec.calls[0] != "list" {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
