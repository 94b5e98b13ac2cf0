package sim

import (
	"fmt"
	"strings"
)

// Intent is a rider or operator request applied between frames.
type Intent int

const (
	IntentBoard Intent = iota
	IntentAlight
	IntentInspector
	IntentReset
)

// IntentNames lists every intent in subject order.
var IntentNames = []string{"board", "alight", "inspector", "reset"}

func (i Intent) String() string {
	if i < 0 || int(i) >= len(IntentNames) {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return IntentNames[i]
}

func ParseIntent(s string) (Intent, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range IntentNames {
		if s == name {
			return Intent(i), nil
		}
	}
	return 0, fmt.Errorf("unknown intent %q", s)
}
