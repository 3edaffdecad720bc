package model

// AvailableSubjects is the fixed catalog every subject field validates
// against: ticket subjects, meeting subjects, study-room subjects,
// tutor specialties and student struggles all draw from this list.
var AvailableSubjects = []string{
	"Math",
	"Science",
	"English",
	"History",
	"Computer Science",
}

// ValidSubject reports whether s is in the catalog. Matching is exact;
// casing matters.
func ValidSubject(s string) bool {
	for _, subj := range AvailableSubjects {
		if subj == s {
			return true
		}
	}
	return false
}
