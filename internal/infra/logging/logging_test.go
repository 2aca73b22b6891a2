//go:build !integration

// File: internal/infra/logging/logging_test.go
package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "req-123")
	ctx = WithLearnerID(ctx, "learner-9")
	ctx = WithEnrollmentID(ctx, "enr-7")

	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{
		`"trace_id":"req-123"`,
		`"learner_id":"learner-9"`,
		`"enrollment_id":"enr-7"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %s", out, want)
		}
	}
}

func TestWithEmptyContextAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	With(context.Background(), &base).Info().Msg("plain")

	if out := buf.String(); strings.Contains(out, "trace_id") || strings.Contains(out, "learner_id") {
		t.Errorf("unexpected fields in %q", out)
	}
}
