package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubSender struct {
	platform string
}

func (s *stubSender) Platform() string { return s.platform }

func (s *stubSender) SendOne(ctx context.Context, recipient, content, fileURL string) Result {
	return Result{Success: true}
}

func TestSelectorResolveKnownPlatform(t *testing.T) {
	tg := &stubSender{platform: "telegram"}
	sl := &stubSender{platform: "slack"}
	sel := NewSelector(tg, sl)

	got, err := sel.Resolve("telegram")
	require.NoError(t, err)
	require.Same(t, tg, got)

	got, err = sel.Resolve("slack")
	require.NoError(t, err)
	require.Same(t, sl, got)
}

func TestSelectorResolveReturnsSameInstance(t *testing.T) {
	tg := &stubSender{platform: "telegram"}
	sel := NewSelector(tg)

	first, err := sel.Resolve("telegram")
	require.NoError(t, err)
	second, err := sel.Resolve("telegram")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestSelectorResolveUnknownPlatform(t *testing.T) {
	sel := NewSelector(&stubSender{platform: "telegram"}, &stubSender{platform: "slack"})

	_, err := sel.Resolve("smoke-signal")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedPlatform))

	// the error names the offending tag and the valid set
	require.Contains(t, err.Error(), "smoke-signal")
	require.Contains(t, err.Error(), "slack")
	require.Contains(t, err.Error(), "telegram")
}

func TestSelectorSupportedSorted(t *testing.T) {
	sel := NewSelector(
		&stubSender{platform: "whatsapp"},
		&stubSender{platform: "discord"},
		&stubSender{platform: "telegram"},
	)
	require.Equal(t, []string{"discord", "telegram", "whatsapp"}, sel.Supported())
}
