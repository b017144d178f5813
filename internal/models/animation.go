package models

import "strings"

// Animation groups in the default catalog.
var (
	AnimationsDancing  = []string{"hip_hop_dancing", "salsa_dancing", "silly_dancing", "swing_dancing", "twerk", "robot_dance"}
	AnimationsHead     = []string{"head_nod_yes", "shaking_head_no", "looking_around", "thinking", "tilt_head"}
	AnimationsGestures = []string{"waving", "clapping", "pointing", "thumbs_up", "shrugging", "talking", "excited"}
	AnimationsSpecial  = []string{"backflip", "jumping", "bow", "laughing", "sitting_idle", "victory"}
)

// DefaultAnimations returns the full default catalog in a fresh slice.
func DefaultAnimations() []string {
	out := make([]string, 0, len(AnimationsDancing)+len(AnimationsHead)+len(AnimationsGestures)+len(AnimationsSpecial))
	out = append(out, AnimationsDancing...)
	out = append(out, AnimationsHead...)
	out = append(out, AnimationsGestures...)
	out = append(out, AnimationsSpecial...)
	return out
}

// LookupAnimation normalizes a tag and reports whether it is in the catalog.
func LookupAnimation(catalog []string, tag string) (string, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.Trim(tag, "\"'`.")
	for _, a := range catalog {
		if strings.ToLower(a) == tag {
			return a, true
		}
	}
	return "", false
}
