package position

import (
	"fmt"
	"strings"

	"fxmatch/internal/common"
	"fxmatch/internal/risk"
)

// FillPolicy decides how much of a requested quantity is taken given the risk
// headroom of the party taking it.
type FillPolicy func(requested int64, headroom risk.Limit) int64

// PartialFill takes as much as the headroom allows.
func PartialFill(requested int64, headroom risk.Limit) int64 {
	return headroom.Clip(requested)
}

// FullFill takes everything or nothing.
func FullFill(requested int64, headroom risk.Limit) int64 {
	if headroom.Clip(requested) < requested {
		return 0
	}
	return requested
}

// ParseFillPolicy maps "partial" or "full" to a policy. An empty name is
// partial.
func ParseFillPolicy(name string) (FillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "partial":
		return PartialFill, nil
	case "full":
		return FullFill, nil
	}
	return nil, fmt.Errorf("%w: unknown fill policy %q", common.ErrValidation, name)
}
