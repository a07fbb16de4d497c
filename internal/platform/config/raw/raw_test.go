package raw

import (
	"testing"
)

// Test Get with prefixing and trimming
func TestConfGet(t *testing.T) {
	t.Setenv("APP_NAME", " relay ")
	t.Setenv("TG_CHANNEL", " @alumni ")

	root := New()
	tg := root.Prefix("TG_")

	tests := []struct {
		name string
		conf Conf
		key  string
		def  string
		want string
	}{
		{name: "root no default used", conf: root, key: "APP_NAME", def: "x", want: "relay"},
		{name: "prefixed hit", conf: tg, key: "CHANNEL", def: "x", want: "@alumni"},
		{name: "missing returns default", conf: tg, key: "MISSING", def: "defv", want: "defv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.conf.Get(tc.key, tc.def); got != tc.want {
				t.Fatalf("Get(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestConfGetBool(t *testing.T) {
	t.Setenv("FLAG_ON", "yes")
	t.Setenv("FLAG_OFF", "0")

	c := New().Prefix("FLAG_")
	if !c.GetBool("ON", false) {
		t.Fatalf("GetBool(ON) = false, want true")
	}
	if c.GetBool("OFF", true) {
		t.Fatalf("GetBool(OFF) = true, want false")
	}
	if !c.GetBool("MISSING", true) {
		t.Fatalf("GetBool(MISSING) should fall back to default")
	}
}

func TestConfGetInt(t *testing.T) {
	t.Setenv("N_GOOD", "42")
	t.Setenv("N_BAD", "4x2")

	c := New().Prefix("N_")
	if got := c.GetInt("GOOD", 1); got != 42 {
		t.Fatalf("GetInt(GOOD) = %d, want 42", got)
	}
	if got := c.GetInt("BAD", 7); got != 7 {
		t.Fatalf("GetInt(BAD) = %d, want default 7", got)
	}
	if got := c.GetInt("MISSING", 9); got != 9 {
		t.Fatalf("GetInt(MISSING) = %d, want default 9", got)
	}
}
