package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "Inbox - Mail", "Inbox - Mail"},
		{"empty", "", ""},
		{"comma is quoted", "report.docx, read-only", `"report.docx, read-only"`},
		{"long is truncated", strings.Repeat("é", MaxTitleLength+40), strings.Repeat("é", MaxTitleLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title))
		})
	}
}

func TestScriptedReplaysThenFails(t *testing.T) {
	s := Titles("A", "B")
	ctx := context.Background()

	first, err := s.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, Sample{Title: "A", Program: "A.exe"}, first)

	select {
	case <-s.Exhausted():
		t.Fatal("exhausted too early")
	default:
	}

	second, err := s.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", second.Title)

	select {
	case <-s.Exhausted():
	default:
		t.Fatal("expected exhausted after the last sample")
	}

	_, err = s.Sample(ctx)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.True(t, errors.Is(err, ErrScriptExhausted))
}

func TestScriptedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Titles("A").Sample(ctx)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.Canceled)
}
