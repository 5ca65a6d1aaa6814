package course

import "sort"

// TeacherWorkload summarizes one teacher's course load across assignments.
type TeacherWorkload struct {
	TeacherID        string `json:"teacher_id"`
	TotalCourses     int    `json:"total_courses"`
	PrimaryCourses   int    `json:"primary_courses"`
	SecondaryCourses int    `json:"secondary_courses"`
	GradableCourses  int    `json:"gradable_courses"`
	ManagedCourses   int    `json:"managed_courses"`
}

// CalculateTeacherWorkload aggregates assignment records per teacher.
// The input is not modified; the result is sorted by teacher ID so repeated
// calls over the same input are identical.
func CalculateTeacherWorkload(assignments []TeacherAssignment) []TeacherWorkload {
	byTeacher := make(map[string]*TeacherWorkload)
	for _, a := range assignments {
		w, ok := byTeacher[a.TeacherID]
		if !ok {
			w = &TeacherWorkload{TeacherID: a.TeacherID}
			byTeacher[a.TeacherID] = w
		}
		w.TotalCourses++
		if a.Role == RolePrimary {
			w.PrimaryCourses++
		} else {
			w.SecondaryCourses++
		}
		if a.CanGrade {
			w.GradableCourses++
		}
		if a.CanManageContent {
			w.ManagedCourses++
		}
	}

	workloads := make([]TeacherWorkload, 0, len(byTeacher))
	for _, w := range byTeacher {
		workloads = append(workloads, *w)
	}
	sort.Slice(workloads, func(i, j int) bool { return workloads[i].TeacherID < workloads[j].TeacherID })
	return workloads
}
