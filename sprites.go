package main

// SpriteVariant is one of the four thruster/muzzle appearance states
type SpriteVariant uint8

const (
	ThrustOffMuzzleOff SpriteVariant = iota
	ThrustOffMuzzleOn
	ThrustOnMuzzleOff
	ThrustOnMuzzleOn
	numSpriteVariants
)

// spriteWireNames are the keys the asset services use for each variant
var spriteWireNames = [numSpriteVariants]string{
	ThrustOffMuzzleOff: "thrustersOffMuzzleOff",
	ThrustOffMuzzleOn:  "thrustersOffMuzzleOn",
	ThrustOnMuzzleOff:  "thrustersOnMuzzleOff",
	ThrustOnMuzzleOn:   "thrustersOnMuzzleOn",
}

// VariantFor returns the variant for a thrust/muzzle pair
func VariantFor(thrust, muzzle bool) SpriteVariant {
	v := ThrustOffMuzzleOff
	if thrust {
		v |= ThrustOnMuzzleOff
	}
	if muzzle {
		v |= ThrustOffMuzzleOn
	}
	return v
}

func (v SpriteVariant) String() string {
	if v < numSpriteVariants {
		return spriteWireNames[v]
	}
	return "unknown"
}

// SpriteSet holds an image URL per variant; empty means not available
type SpriteSet [numSpriteVariants]string

// Resolve picks the URL for the current state: exact match, then the same
// thrust state without muzzle flash, then the idle baseline, then thrusting.
func (s SpriteSet) Resolve(thrust, muzzle bool) string {
	if url := s[VariantFor(thrust, muzzle)]; url != "" {
		return url
	}
	if muzzle {
		if url := s[VariantFor(thrust, false)]; url != "" {
			return url
		}
	}
	if url := s[ThrustOffMuzzleOff]; url != "" {
		return url
	}
	return s[ThrustOnMuzzleOff]
}

// Preferred returns the first available URL, idle first
func (s SpriteSet) Preferred() string {
	for _, url := range s {
		if url != "" {
			return url
		}
	}
	return ""
}

// Count returns how many variants have a URL
func (s SpriteSet) Count() int {
	n := 0
	for _, url := range s {
		if url != "" {
			n++
		}
	}
	return n
}

// Merge overlays the non-empty URLs of o onto s
func (s SpriteSet) Merge(o SpriteSet) SpriteSet {
	for i, url := range o {
		if url != "" {
			s[i] = url
		}
	}
	return s
}

// ParseSpriteSet reads the asset services' keyed sprite map. Unknown keys are ignored.
func ParseSpriteSet(m map[string]SpriteRef) SpriteSet {
	var s SpriteSet
	for i, name := range spriteWireNames {
		if ref, ok := m[name]; ok && ref.URL != "" {
			s[i] = ref.URL
		}
	}
	return s
}

// WireMap converts the set back into the keyed form used on the wire
func (s SpriteSet) WireMap() map[string]SpriteRef {
	m := make(map[string]SpriteRef, numSpriteVariants)
	for i, url := range s {
		if url != "" {
			m[spriteWireNames[i]] = SpriteRef{URL: url}
		}
	}
	return m
}

// URLs returns the non-empty URLs in variant order
func (s SpriteSet) URLs() []string {
	var out []string
	for _, url := range s {
		if url != "" {
			out = append(out, url)
		}
	}
	return out
}

// SpriteRef is a single sprite entry as the asset services return it
type SpriteRef struct {
	URL string `json:"url" msgpack:"url"`
}
