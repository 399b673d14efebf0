package email

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRenderTrackedHTMLAppendsPixel(t *testing.T) {
	id := uuid.New()
	out := renderTrackedHTML("Beste Jan,\n\nGroet", "http://localhost:8080/", id)

	want := `<img src="http://localhost:8080/t/o/` + id.String() + `.gif"`
	if !strings.Contains(out, want) {
		t.Fatalf("pixel missing:\n%s", out)
	}
	if !strings.Contains(out, "Beste Jan,<br><br>Groet") {
		t.Errorf("newlines not converted:\n%s", out)
	}
}

func TestRenderTrackedHTMLRewritesLinks(t *testing.T) {
	id := uuid.New()
	out := renderTrackedHTML("Zie https://example.com/pricing?x=1 voor meer.", "http://localhost:8080", id)

	if !strings.Contains(out, `href="http://localhost:8080/t/c/`+id.String()+`?url=https%3A%2F%2Fexample.com%2Fpricing%3Fx%3D1"`) {
		t.Fatalf("link not rewritten through redirect:\n%s", out)
	}
	// Anchor text keeps the original URL so the reader can see the target.
	if !strings.Contains(out, ">https://example.com/pricing?x=1</a>") {
		t.Errorf("anchor text missing:\n%s", out)
	}
}

func TestRenderTrackedHTMLEscapesBody(t *testing.T) {
	out := renderTrackedHTML("a < b & c", "http://localhost:8080", uuid.New())
	if !strings.Contains(out, "a &lt; b &amp; c") {
		t.Fatalf("body not escaped:\n%s", out)
	}
}
