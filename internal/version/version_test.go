package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime })

	Version, GitSHA, BuildTime = "v0.3.0", "abc1234", "2024-03-01T09:00:00Z"
	if got, want := String(), "v0.3.0 (abc1234, built 2024-03-01T09:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
