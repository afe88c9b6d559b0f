package web

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderDashboard(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, "dashboard", map[string]any{
		"KnockHits":     int64(3),
		"NormalRoutes":  int64(1),
		"SniffTimeouts": int64(2),
		"Rejected":      int64(5),
		"ActivePipes":   int64(1),
		"TotalPipes":    int64(4),
	})
	if err != nil {
		t.Fatalf("render dashboard: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Knock hits", "<td>3</td>", "Rejected", "<td>5</td>", "generated "} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard output missing %q", want)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "no-such-page", nil); err == nil {
		t.Error("expected an error for an unknown template name")
	}
}
