package insts

import "fmt"

// Tier is the speculation risk tier of an instruction block. A block takes
// the worst tier of its instructions. The zero value is TierBypass, so an
// unclassified block runs serially.
type Tier uint8

// Speculation tiers.
const (
	// TierBypass blocks contain synchronization, system or atomic
	// instructions and always run serially on the master.
	TierBypass Tier = iota
	// TierConservative blocks have no memory writes or control flow and
	// may be split across idle workers.
	TierConservative
	// TierOptimistic blocks contain stores, branches or jumps and may
	// only run speculatively under the validator's supervision.
	TierOptimistic
)

// severity orders tiers from least to most restrictive.
func (t Tier) severity() int {
	switch t {
	case TierConservative:
		return 0
	case TierOptimistic:
		return 1
	default:
		return 2
	}
}

// Worse returns the more restrictive of t and other.
func (t Tier) Worse(other Tier) Tier {
	if other.severity() > t.severity() {
		return other
	}
	return t
}

// String returns the lower-case tier name.
func (t Tier) String() string {
	switch t {
	case TierConservative:
		return "conservative"
	case TierOptimistic:
		return "optimistic"
	case TierBypass:
		return "bypass"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// ParseTier parses a tier name as produced by Tier.String.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "conservative":
		return TierConservative, nil
	case "optimistic":
		return TierOptimistic, nil
	case "bypass":
		return TierBypass, nil
	default:
		return 0, fmt.Errorf("unknown speculation tier %q", s)
	}
}

// ClassTier returns the tier a single instruction class forces.
func ClassTier(c Class) Tier {
	switch c {
	case ClassFence, ClassSystem, ClassAtomic:
		return TierBypass
	case ClassStore, ClassBranch, ClassJump, ClassIndirectJump:
		return TierOptimistic
	default:
		return TierConservative
	}
}

// Classify returns the tier of a block: any bypass-class instruction forces
// TierBypass, otherwise any optimistic-class instruction forces
// TierOptimistic, otherwise TierConservative.
func Classify(words []uint32) Tier {
	d := NewDecoder()
	tier := TierConservative
	for _, w := range words {
		tier = tier.Worse(ClassTier(d.Decode(w).Class))
		if tier == TierBypass {
			return TierBypass
		}
	}
	return tier
}
