package dchan

import "testing"

func TestOpenMissingDeviceFails(t *testing.T) {
	_, err := Open("/dev/isdnsig-test-device-does-not-exist")
	if err == nil {
		t.Fatal("expected error opening a nonexistent device")
	}
}
