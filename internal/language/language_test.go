package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		locale  string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"  ", "", false},
		{"en", "en", false},
		{"en-US", "en", false},
		{"pt_BR", "pt", false},
		{"DE", "de", false},
		{"zh-Hans-CN", "zh", false},
		{"xx", "", true},
		{"klingon", "", true},
		{"-US", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			got, err := Normalize(tt.locale)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.locale, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.locale, got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	lang, ok := Lookup("fr-CA")
	if !ok || lang.Name != "French" || lang.NativeName != "Français" {
		t.Errorf("Lookup(fr-CA) = %+v, %v", lang, ok)
	}
	if lang.Label() != "French (fr)" {
		t.Errorf("Label() = %q", lang.Label())
	}

	for _, locale := range []string{"", "xx-YY"} {
		lang, ok := Lookup(locale)
		if ok || lang != Auto {
			t.Errorf("Lookup(%q) = %+v, %v, want Auto", locale, lang, ok)
		}
	}
	if Auto.Label() != "Auto-detect" {
		t.Errorf("Auto.Label() = %q", Auto.Label())
	}
}

func TestList(t *testing.T) {
	list := List()
	if len(list) != len(table) {
		t.Fatalf("List() returned %d languages, want %d", len(list), len(table))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("List() not sorted: %s before %s", list[i-1].Name, list[i].Name)
		}
	}

	list[0].Name = "changed"
	if List()[0].Name == "changed" {
		t.Error("List() must return a copy")
	}
}

func TestTableCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, l := range table {
		if len(l.Code) != 2 {
			t.Errorf("%s: code %q is not ISO 639-1", l.Name, l.Code)
		}
		if seen[l.Code] {
			t.Errorf("duplicate code %q", l.Code)
		}
		seen[l.Code] = true
	}
}
