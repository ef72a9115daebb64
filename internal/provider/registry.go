package provider

import (
	"fmt"
	"strings"
)

// ParseChain splits a comma separated provider list into known names,
// de-duplicated in order, and the tokens it could not recognise. REAL is an
// alias of TWELVE. An empty result defaults to TWELVE.
func ParseChain(raw string) (names []Name, invalid []string) {
	seen := make(map[Name]struct{})
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		t := strings.ToUpper(token)
		if t == "" {
			continue
		}
		var n Name
		switch t {
		case "REAL", string(Twelve):
			n = Twelve
		case string(Yahoo), string(Alpha), string(TInvest), string(Mock):
			n = Name(t)
		default:
			invalid = append(invalid, token)
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	if len(names) == 0 {
		names = []Name{Twelve}
	}
	return names, invalid
}

// Factory builds one provider; an error marks it unavailable.
type Factory func() (MarketDataProvider, error)

// Resolve builds a handle per requested name. Names without a factory are
// kept as unavailable links so the attempt log shows them.
func Resolve(names []Name, factories map[Name]Factory) []Handle {
	handles := make([]Handle, 0, len(names))
	for _, n := range names {
		f, ok := factories[n]
		if !ok {
			handles = append(handles, Unavailable(n, fmt.Errorf("%w: provider %s is not implemented", ErrUnavailable, n)))
			continue
		}
		p, err := f()
		if err != nil {
			handles = append(handles, Unavailable(n, fmt.Errorf("%w: %w", ErrUnavailable, err)))
			continue
		}
		handles = append(handles, Available(n, p))
	}
	return handles
}
