package plugins

import "testing"

func TestParseConversionSpecifiers(t *testing.T) {
	specs := ParseConversionSpecifiers("%s %(name)d %5.2f %%")
	if len(specs) != 4 {
		t.Fatalf("got %d specifiers, want 4", len(specs))
	}

	if specs[0].Type != "s" || specs[0].HasKey {
		t.Errorf("spec[0] = %+v, want plain %%s", specs[0])
	}
	if specs[1].Type != "d" || !specs[1].HasKey || specs[1].Key != "name" {
		t.Errorf("spec[1] = %+v, want keyed %%d", specs[1])
	}
	if specs[2].Type != "f" || specs[2].Width != "5" || specs[2].Precision != "2" {
		t.Errorf("spec[2] = %+v, want width 5 precision 2", specs[2])
	}
	if specs[3].Type != "%" {
		t.Errorf("spec[3] = %+v, want literal percent", specs[3])
	}
}

func TestParseConversionSpecifierStars(t *testing.T) {
	specs := ParseConversionSpecifiers("%*.*f")
	if len(specs) != 1 {
		t.Fatalf("got %d specifiers, want 1", len(specs))
	}
	if !specs[0].HasStar() {
		t.Errorf("spec = %+v, want star width and precision", specs[0])
	}
}

func TestParseFormatFields(t *testing.T) {
	fields := ParseFormatFields("{} {0} {name!r:>10} {{literal}}")
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3: %+v", len(fields), fields)
	}
	if fields[0].Key != "" {
		t.Errorf("fields[0].Key = %q, want automatic", fields[0].Key)
	}
	if fields[1].Key != "0" {
		t.Errorf("fields[1].Key = %q, want 0", fields[1].Key)
	}
	if fields[2].Key != "name" {
		t.Errorf("fields[2].Key = %q, want name", fields[2].Key)
	}
}
