package recommendations

import "testing"

func TestSelectMatchesTagsInCatalogueOrder(t *testing.T) {
	got := Select([]string{"coesão", "gramática"})
	if len(got) != 3 {
		t.Fatalf("got %d resources, want 3", len(got))
	}
	// Catalogue order wins over tag order.
	if got[0].ID != "norma-culta-acentuacao" {
		t.Fatalf("first = %s", got[0].ID)
	}
}

func TestSelectCapsAtThree(t *testing.T) {
	got := Select([]string{"gramática", "coesão", "tema", "intervenção", "originalidade"})
	if len(got) != 3 {
		t.Fatalf("got %d resources, want cap of 3", len(got))
	}
}

func TestSelectIsCaseInsensitive(t *testing.T) {
	got := Select([]string{"GRAMÁTICA"})
	if len(got) == 0 {
		t.Fatal("no match for upper-case tag")
	}
}

func TestSelectNoTags(t *testing.T) {
	if got := Select(nil); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestCatalogueIsCopied(t *testing.T) {
	first := Catalogue()
	first[0].Title = "mutated"
	if Catalogue()[0].Title == "mutated" {
		t.Fatal("catalogue shared backing array")
	}
}
