package sender

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Selector maps a platform tag to its registered strategy. Resolution is
// deterministic: the same tag always yields the same instance.
type Selector struct {
	senders map[string]Sender
}

func NewSelector(senders ...Sender) *Selector {
	m := make(map[string]Sender, len(senders))
	for _, s := range senders {
		m[s.Platform()] = s
	}
	return &Selector{senders: m}
}

func (s *Selector) Resolve(platform string) (Sender, error) {
	snd, ok := s.senders[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedPlatform, platform, strings.Join(s.Supported(), ", "))
	}
	return snd, nil
}

func (s *Selector) Supported() []string {
	tags := make([]string, 0, len(s.senders))
	for tag := range s.senders {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
