package schema

import "testing"

func TestToSchemaNameIsPureAndValid(t *testing.T) {
	tokens := []string{"abc123", "", "a-very-long-token-with-many-characters-indeed-01234567890"}
	for _, tok := range tokens {
		first := ToSchemaName(tok)
		second := ToSchemaName(tok)
		if first != second {
			t.Fatalf("ToSchemaName(%q) not pure: %q != %q", tok, first, second)
		}
		if err := ValidateSchemaName(first); err != nil {
			t.Fatalf("ToSchemaName(%q) = %q fails validation: %v", tok, first, err)
		}
	}
}

func TestToSchemaNameDistinctForDistinctTokens(t *testing.T) {
	a := ToSchemaName("token-a")
	b := ToSchemaName("token-b")
	if a == b {
		t.Fatalf("expected distinct schema names, got %q for both", a)
	}
}

func TestValidateSchemaNameRejectsInjection(t *testing.T) {
	bad := []string{
		"preview_abc; DROP TABLE users;--",
		"preview_abc'",
		"not_preview_prefixed",
		"preview_",
		"",
		"preview_" + string(make([]byte, 60)),
	}
	for _, name := range bad {
		if err := ValidateSchemaName(name); err == nil {
			t.Errorf("ValidateSchemaName(%q) = nil, want error", name)
		}
	}
}
