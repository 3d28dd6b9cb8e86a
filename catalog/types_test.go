package catalog

import "testing"

func TestNormalizePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "3500", "3500"},
		{"spaced_with_currency", "3 500 EUR", "3500"},
		{"mixed_separators", "1.250,00", "125000"},
		{"leading_zeros", "007", "7"},
		{"surrounding_text", "about 40 bucks", "40"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizePrice(tc.in)
			if err != nil {
				t.Fatalf("NormalizePrice(%q) error = %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizePrice(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizePriceRejects(t *testing.T) {
	t.Parallel()

	invalid := []string{"", "free", "EUR", "0", "000", "zero euros"}
	for _, in := range invalid {
		in := in
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			if _, err := NormalizePrice(in); err == nil {
				t.Fatalf("NormalizePrice(%q) expected error", in)
			}
		})
	}
}

func validDraft() Draft {
	return Draft{
		OwnerID:   7,
		Photos:    []string{"photo-1"},
		Title:     "wool coat",
		Era:       "80s",
		Condition: "good",
		Size:      "M",
		City:      "Riga",
		Price:     "3500",
	}
}

func TestDraftValidate(t *testing.T) {
	t.Parallel()

	if err := validDraft().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Draft)
	}{
		{"no_owner", func(d *Draft) { d.OwnerID = 0 }},
		{"no_photos", func(d *Draft) { d.Photos = nil }},
		{"too_many_photos", func(d *Draft) {
			d.Photos = make([]string, MaxPhotos+1)
			for i := range d.Photos {
				d.Photos[i] = "p"
			}
		}},
		{"blank_photo_ref", func(d *Draft) { d.Photos = []string{"  "} }},
		{"blank_title", func(d *Draft) { d.Title = "  " }},
		{"blank_era", func(d *Draft) { d.Era = "" }},
		{"blank_condition", func(d *Draft) { d.Condition = "" }},
		{"blank_size", func(d *Draft) { d.Size = "" }},
		{"blank_city", func(d *Draft) { d.City = "" }},
		{"bad_price", func(d *Draft) { d.Price = "free" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := validDraft()
			tc.mutate(&d)
			if err := d.Validate(); err == nil {
				t.Fatalf("Validate() expected error for %s", tc.name)
			}
		})
	}
}

func TestDraftValidateCommentOptional(t *testing.T) {
	t.Parallel()

	d := validDraft()
	d.Comment = ""
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil for empty comment", err)
	}
}
