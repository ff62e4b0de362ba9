package parser

import "strings"

// missionNames maps every mission id observed in real server logs to its
// display name. Immutable after init.
var missionNames = map[string]string{
	// Airport
	"GA_Airport_mis_01_SFPSACMission": "Airport Mission #1",
	"GA_Airport_mis_02_SFPSACMission": "Airport Mission #2",
	"GA_Airport_mis_03_SFPSACMission": "Airport Mission #3",
	"GA_Airport_mis_04_SFPSACMission": "Airport Mission #4",

	// Settlements
	"GA_Beregovoy_Mis1":           "Beregovoy Settlement Mission",
	"GA_Settle_05_ChernyLog_Mis1": "Cherny Log Settlement Mission",
	"GA_Settle_09_Mis_1":          "Settlement Mission #9",

	// Military bases
	"GA_Military_02_Mis1":   "Military Base Mission #2",
	"GA_Military_03_Mis_01": "Military Base Mission #3",
	"GA_Military_04_Mis1":   "Military Base Mission #4",
	"GA_Military_04_Mis_2":  "Military Base Mission #4B",

	// Industrial zones
	"GA_Ind_01_m1":         "Industrial Zone Mission #1",
	"GA_Ind_02_Mis_1":      "Industrial Zone Mission #2",
	"GA_PromZone_6_Mis_1":  "Industrial Zone Mission #6",
	"GA_PromZone_Mis_01":   "Industrial Zone Mission A",
	"GA_PromZone_Mis_02":   "Industrial Zone Mission B",

	// Chemical plant
	"GA_KhimMash_Mis_01": "Chemical Plant Mission #1",
	"GA_KhimMash_Mis_02": "Chemical Plant Mission #2",

	// Cities
	"GA_Kamensk_Ind_3_Mis_1": "Kamensk Industrial Mission",
	"GA_Kamensk_Mis_1":       "Kamensk City Mission #1",
	"GA_Kamensk_Mis_2":       "Kamensk City Mission #2",
	"GA_Kamensk_Mis_3":       "Kamensk City Mission #3",
	"GA_Krasnoe_Mis_1":       "Krasnoe City Mission",
	"GA_Vostok_Mis_1":        "Vostok City Mission",

	// Special locations
	"GA_Bunker_01_Mis1":     "Underground Bunker Mission",
	"GA_Lighthouse_02_Mis1": "Lighthouse Mission #2",
	"GA_Elevator_Mis_1":     "Elevator Complex Mission #1",
	"GA_Elevator_Mis_2":     "Elevator Complex Mission #2",

	// Resources
	"GA_Sawmill_01_Mis1":   "Sawmill Mission #1",
	"GA_Sawmill_02_1_Mis1": "Sawmill Mission #2A",
	"GA_Sawmill_03_Mis_01": "Sawmill Mission #3",
	"GA_Bochki_Mis_1":      "Barrel Storage Mission",
	"GA_Dubovoe_0_Mis_1":   "Dubovoe Resource Mission",
}

// keywordFallbacks are tested in priority order when a mission id has no
// exact catalog entry. The suffix after the last underscore becomes the
// parenthesized qualifier.
var keywordFallbacks = []struct {
	infixes []string
	label   string
}{
	{[]string{"_Airport_"}, "Airport"},
	{[]string{"_Military_"}, "Military"},
	{[]string{"_Settle_"}, "Settlement"},
	{[]string{"_Ind_", "_PromZone_"}, "Industrial"},
	{[]string{"_KhimMash_"}, "Chemical Plant"},
	{[]string{"_Bunker_"}, "Bunker"},
	{[]string{"_Sawmill_"}, "Sawmill"},
}

// NormalizeMissionName resolves a mission id to a display name: exact
// catalog hit, then keyword fallback, then title-cased id tokens, then a
// generic label carrying the raw id.
func NormalizeMissionName(missionID string) string {
	if name, ok := missionNames[missionID]; ok {
		return name
	}

	for _, fb := range keywordFallbacks {
		for _, infix := range fb.infixes {
			if strings.Contains(missionID, infix) {
				parts := strings.Split(missionID, "_")
				return fb.label + " Mission (" + parts[len(parts)-1] + ")"
			}
		}
	}

	// Strip known prefixes/infixes and title-case what remains.
	stripped := strings.NewReplacer("GA_", "", "_Mis", "", "_mis", "").Replace(missionID)
	var words []string
	for _, part := range strings.Split(stripped, "_") {
		if isAlpha(part) {
			words = append(words, capitalize(part))
		}
	}
	if len(words) > 0 {
		return strings.Join(words, " ") + " Mission"
	}
	return "Special Mission (" + missionID + ")"
}

// missionTiers classify a mission id into a difficulty tier 1-5. Rules
// are evaluated in fixed priority order; the first hit wins.
var missionTiers = []struct {
	keywords []string
	level    int
}{
	{[]string{"military", "bunker", "khimmash"}, 5},
	{[]string{"airport", "promzone", "kamensk"}, 4},
	{[]string{"ind_", "industrial"}, 3},
	{[]string{"sawmill", "lighthouse", "elevator"}, 2},
}

// MissionLevel returns the difficulty tier for a mission id, defaulting
// to 1 when no keyword matches.
func MissionLevel(missionID string) int {
	lower := strings.ToLower(missionID)
	for _, tier := range missionTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.level
			}
		}
	}
	return 1
}

func capitalize(s string) string {
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}
