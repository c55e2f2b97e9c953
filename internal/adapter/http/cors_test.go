package httpadapter

import (
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
)

func TestApplyCORSHeaders_AnyOrigin(t *testing.T) {
	ctx := &app.RequestContext{}
	applyCORSHeaders(ctx, nil)

	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")), "*"; got != want {
		t.Fatalf("allow-origin mismatch: got=%q want=%q", got, want)
	}
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Methods")), corsAllowMethods; got != want {
		t.Fatalf("allow-methods mismatch: got=%q want=%q", got, want)
	}
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Headers")), corsAllowHeaders; got != want {
		t.Fatalf("allow-headers mismatch: got=%q want=%q", got, want)
	}
}

func TestApplyCORSHeaders_AllowList(t *testing.T) {
	origins := []string{"https://ops.example.com"}

	ctx := &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "https://ops.example.com")
	applyCORSHeaders(ctx, origins)
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")), "https://ops.example.com"; got != want {
		t.Fatalf("allow-origin mismatch: got=%q want=%q", got, want)
	}
	if got := string(ctx.Response.Header.Peek("Vary")); got != "Origin" {
		t.Fatalf("expected Vary: Origin, got %q", got)
	}

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "https://evil.example.com")
	applyCORSHeaders(ctx, origins)
	if got := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")); got != "" {
		t.Fatalf("unlisted origin must not be allowed, got %q", got)
	}
}
