package model

import "strings"

// JobType is the canonical employment type of a posting.
type JobType string

const (
	JobTypeFullTime   JobType = "fulltime"
	JobTypePartTime   JobType = "parttime"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
	JobTypePerDiem    JobType = "perdiem"
	JobTypeNights     JobType = "nights"
	JobTypeOther      JobType = "other"
	JobTypeSummer     JobType = "summer"
	JobTypeVolunteer  JobType = "volunteer"
)

// jobTypeSurfaces maps each canonical type to the localized surface strings
// boards use for it. Matching is by substring against a normalized token
// (lowercased, whitespace and hyphens stripped), so "Full-Time", "fulltime"
// and "tiempo completo" all resolve to JobTypeFullTime.
var jobTypeSurfaces = map[JobType][]string{
	JobTypeFullTime: {
		"fulltime", "full time", "périodeintégrale", "tempointegral", "tiempocompleto",
		"vollzeit", "voltijds", "tempoindeterminato", "plnýúvazek", "fuldtid",
		"덴마크", "heltid", "kokopäivätyö", "tamvakit", "全职", "permanent",
	},
	JobTypePartTime: {
		"parttime", "part time", "tempsparti", "meiotempo", "tiempoparcial",
		"teilzeit", "deeltijds", "tempoparziale", "částečnýúvazek", "deltid",
		"osa-aikainen", "yarızamanlı", "兼职",
	},
	JobTypeContract: {
		"contract", "contractor", "contrat", "contrato", "vertrag", "度的合同",
	},
	JobTypeTemporary: {
		"temporary", "temporaire", "temporário", "temporal", "befristet", "临时",
	},
	JobTypeInternship: {
		"internship", "stage", "estágio", "prácticas", "praktikum", "实习",
		"intern",
	},
	JobTypePerDiem:   {"perdiem", "per diem"},
	JobTypeNights:    {"nights", "night shift", "denuit", "denoche", "nachtdienst"},
	JobTypeOther:     {"other", "autre", "otro", "andere"},
	JobTypeSummer:    {"summer", "été", "verano", "sommer"},
	JobTypeVolunteer: {"volunteer", "bénévole", "voluntario", "freiwillig"},
}

// jobTypeOrder fixes the iteration order so parsing is deterministic.
var jobTypeOrder = []JobType{
	JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeTemporary,
	JobTypeInternship, JobTypePerDiem, JobTypeNights, JobTypeSummer,
	JobTypeVolunteer, JobTypeOther,
}

// normalizeJobTypeToken lowercases and strips whitespace and hyphens, the
// normalization boards' surface strings are matched under.
func normalizeJobTypeToken(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.Join(strings.Fields(s), "")
}

// JobTypeFromString resolves a board-reported employment type string to a
// canonical JobType. The second return is false when nothing matched.
func JobTypeFromString(s string) (JobType, bool) {
	token := normalizeJobTypeToken(s)
	if token == "" {
		return "", false
	}
	// "contractor" is an alias ZipRecruiter uses for plain contract work.
	if token == "contractor" {
		return JobTypeContract, true
	}
	for _, jt := range jobTypeOrder {
		for _, surface := range jobTypeSurfaces[jt] {
			if strings.Contains(token, normalizeJobTypeToken(surface)) {
				return jt, true
			}
		}
	}
	return "", false
}

// LinkedInCode returns the f_JT filter code LinkedIn uses for this type,
// or "" when LinkedIn has no such filter bucket.
func (t JobType) LinkedInCode() string {
	switch t {
	case JobTypeFullTime:
		return "F"
	case JobTypePartTime:
		return "P"
	case JobTypeContract:
		return "C"
	case JobTypeTemporary:
		return "T"
	case JobTypeInternship:
		return "I"
	case JobTypeVolunteer:
		return "V"
	default:
		return ""
	}
}
