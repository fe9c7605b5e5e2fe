package academic

// ApprovedCodes returns the codes of every course with at least one record
// whose status text carries the approval marker.
func ApprovedCodes(records []CourseAttemptRecord) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range records {
		if IsApprovedText(r.StatusText) {
			out[r.CourseCode] = struct{}{}
		}
	}
	return out
}

// ProjectedCodes returns the codes of every course placed in any semester.
func ProjectedCodes(semesters []ProjectedSemester) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range semesters {
		for _, c := range s.Courses {
			out[c.Code] = struct{}{}
		}
	}
	return out
}

// ComputeAvailableCourses lists the curriculum courses that can still be
// projected, in curriculum order. A course is available when it is neither
// approved nor already projected and each of its prerequisites is approved
// or projected in some semester.
func ComputeAvailableCourses(curriculum []CurriculumCourse, records []CourseAttemptRecord, semesters []ProjectedSemester) []CurriculumCourse {
	approved := ApprovedCodes(records)
	projected := ProjectedCodes(semesters)

	satisfied := func(code string) bool {
		if _, ok := approved[code]; ok {
			return true
		}
		_, ok := projected[code]
		return ok
	}

	available := make([]CurriculumCourse, 0)
	for _, course := range curriculum {
		if satisfied(course.Code) {
			continue
		}
		ready := true
		for _, pre := range course.Prerequisites {
			if !satisfied(pre) {
				ready = false
				break
			}
		}
		if ready {
			available = append(available, course)
		}
	}
	return available
}
