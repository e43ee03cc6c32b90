package models

import "testing"

func sectionedDoc() Document {
	body := "# Top\nintro\n## Sub\ndeep\n### Deeper\nmore\n# Next\nend\n"
	return Document{
		Body: body,
		Sections: []Section{
			{Heading: "Top", Level: 1, HeadStart: 0, BodyStart: 6},
			{Heading: "Sub", Level: 2, HeadStart: 12, BodyStart: 19},
			{Heading: "Deeper", Level: 3, HeadStart: 24, BodyStart: 35},
			{Heading: "Next", Level: 1, HeadStart: 40, BodyStart: 47},
		},
	}
}

func TestSectionIndex_CaseInsensitive(t *testing.T) {
	d := sectionedDoc()
	if i := d.SectionIndex("sub"); i != 1 {
		t.Errorf("SectionIndex(sub) = %d, want 1", i)
	}
	if i := d.SectionIndex("missing"); i != -1 {
		t.Errorf("SectionIndex(missing) = %d, want -1", i)
	}
}

func TestSectionContent_BoundaryRule(t *testing.T) {
	d := sectionedDoc()

	// Top runs to the next level-1 heading and includes nested subsections.
	if got := d.SectionContent(0); got != "intro\n## Sub\ndeep\n### Deeper\nmore\n" {
		t.Errorf("Top content = %q", got)
	}
	// Sub includes its deeper subsection but stops at the level-1 heading.
	if got := d.SectionContent(1); got != "deep\n### Deeper\nmore\n" {
		t.Errorf("Sub content = %q", got)
	}
	// The last section runs to end of body.
	if got := d.SectionContent(3); got != "end\n" {
		t.Errorf("Next content = %q", got)
	}
}

func TestSectionContent_ExcludesHeadingLine(t *testing.T) {
	d := sectionedDoc()
	for i := range d.Sections {
		content := d.SectionContent(i)
		if len(content) > 0 && content[0] == '#' {
			t.Errorf("section %d content starts with a heading line: %q", i, content)
		}
	}
}

func TestNormalizeIdentity(t *testing.T) {
	cases := map[string]string{
		"Alice Smith":    "alice-smith",
		"  Bob  ":        "bob",
		"three  part id": "three-part-id",
		"":               "",
	}
	for in, want := range cases {
		if got := NormalizeIdentity(in); got != want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIDFromPath(t *testing.T) {
	if got := IDFromPath("sessions/2026-03-01 Auth Work.md"); got != "2026-03-01-auth-work" {
		t.Errorf("id = %q", got)
	}
}

func TestKindFromPath(t *testing.T) {
	cases := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"sessions/a.md", KindSession, true},
		{"plans/p.md", KindPlan, true},
		{"patterns/x.md", KindPattern, true},
		{"notes/n.md", "", false},
		{"loose.md", "", false},
	}
	for _, c := range cases {
		kind, ok := KindFromPath(c.path)
		if kind != c.kind || ok != c.ok {
			t.Errorf("KindFromPath(%q) = %q, %v", c.path, kind, ok)
		}
	}
}

func TestKindDirRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindSession, KindPlan, KindPattern} {
		got, ok := KindFromDir(k.Dir())
		if !ok || got != k {
			t.Errorf("KindFromDir(%q) = %q, %v", k.Dir(), got, ok)
		}
	}
}
