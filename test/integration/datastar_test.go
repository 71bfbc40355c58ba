package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestDatastar_patchesFragment(t *testing.T) {
	h := NewTestHarness(t)
	h.Login("/teststate")

	form := FormState(t, h.ReadBody(h.Get("/teststate")))
	resp := h.PostSignals("/teststate/sse", map[string]any{
		"state_json":         form.Get("state_json"),
		"initial_state_json": form.Get("initial_state_json"),
		"dd_testing":         "7",
		"submit_gt":          ">",
	})
	body := h.ReadBody(resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{
		"event: datastar-patch-elements",
		"selector #page",
		`<option value="8" selected>item 8</option>`,
		"event: datastar-patch-signals",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("stream carries the full document instead of the fragment")
	}
}

func TestDatastar_anonymousIsRedirected(t *testing.T) {
	h := NewTestHarness(t)

	body := h.ReadBody(h.Get("/teststate/sse?id=3"))
	if !strings.Contains(body, "%2Fteststate%3Fid%3D3") {
		t.Errorf("no login redirect in stream:\n%s", body)
	}
}

func TestDatastar_disabled(t *testing.T) {
	h := NewTestHarness(t, WithoutDatastar())
	resp := h.Get("/teststate/sse")
	resp.Body.Close()
	h.AssertStatus(t, resp, http.StatusNotFound)
}
