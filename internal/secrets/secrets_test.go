package secrets

import "testing"

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		p, err := GeneratePassword()
		if err != nil {
			t.Fatalf("GeneratePassword() error = %v", err)
		}
		if len(p) != 12 {
			t.Fatalf("password length = %d, want 12", len(p))
		}
		for _, c := range p {
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9':
			default:
				t.Fatalf("password contains non-alphanumeric character %q", c)
			}
		}
		seen[p] = true
	}
	if len(seen) < 2 {
		t.Fatalf("passwords are not random")
	}
}
