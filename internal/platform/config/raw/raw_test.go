package raw

import "testing"

func TestConf(t *testing.T) {
	t.Setenv("LOG_LEVEL", " info ")
	t.Setenv("LOG_CALLER", "YES")
	t.Setenv("LOG_SAMPLE_EVERY", "-3")
	t.Setenv("LOG_OTHER", "7")

	c := New().Prefix("LOG_")

	if got := c.Get("LEVEL", "debug"); got != "info" {
		t.Fatalf("Get = %q, want info", got)
	}
	if got := c.Get("FORMAT", "console"); got != "console" {
		t.Fatalf("Get default = %q", got)
	}
	if !c.GetBool("CALLER", false) {
		t.Fatal("GetBool = false, want true")
	}
	if got := c.GetInt("SAMPLE_EVERY", 0); got != 0 {
		t.Fatalf("GetInt negative = %d, want default", got)
	}
	if got := c.GetInt("OTHER", 0); got != 7 {
		t.Fatalf("GetInt = %d, want 7", got)
	}
}
