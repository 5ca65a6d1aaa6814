package course

import (
	"reflect"
	"testing"
)

func TestCalculateTeacherWorkload(t *testing.T) {
	assignments := []TeacherAssignment{
		{ID: "a1", CourseID: "c1", TeacherID: "t1", Role: RolePrimary, CanGrade: true, CanManageContent: true},
		{ID: "a2", CourseID: "c2", TeacherID: "t1", Role: RoleSecondary, CanGrade: true},
		{ID: "a3", CourseID: "c3", TeacherID: "t1", Role: RoleSecondary},
		{ID: "a4", CourseID: "c1", TeacherID: "t2", Role: RoleSecondary, CanManageContent: true},
		{ID: "a5", CourseID: "c4", TeacherID: "t3", Role: RolePrimary, CanGrade: true, CanManageContent: true},
	}
	snapshot := make([]TeacherAssignment, len(assignments))
	copy(snapshot, assignments)

	got := CalculateTeacherWorkload(assignments)

	want := []TeacherWorkload{
		{TeacherID: "t1", TotalCourses: 3, PrimaryCourses: 1, SecondaryCourses: 2, GradableCourses: 2, ManagedCourses: 1},
		{TeacherID: "t2", TotalCourses: 1, SecondaryCourses: 1, ManagedCourses: 1},
		{TeacherID: "t3", TotalCourses: 1, PrimaryCourses: 1, GradableCourses: 1, ManagedCourses: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CalculateTeacherWorkload() = %+v, want %+v", got, want)
	}

	// aggregate invariants
	var total int
	for _, w := range got {
		if w.TotalCourses != w.PrimaryCourses+w.SecondaryCourses {
			t.Errorf("teacher %s: total %d != primary %d + secondary %d",
				w.TeacherID, w.TotalCourses, w.PrimaryCourses, w.SecondaryCourses)
		}
		if w.GradableCourses > w.TotalCourses || w.ManagedCourses > w.TotalCourses {
			t.Errorf("teacher %s: permission counts exceed total courses: %+v", w.TeacherID, w)
		}
		total += w.TotalCourses
	}
	if total != len(assignments) {
		t.Errorf("sum of totals = %d, want %d", total, len(assignments))
	}

	// pure: the input is untouched
	if !reflect.DeepEqual(assignments, snapshot) {
		t.Error("input slice was modified")
	}

	// deterministic: identical output across repeated calls
	if again := CalculateTeacherWorkload(assignments); !reflect.DeepEqual(got, again) {
		t.Errorf("repeated call differs: %+v vs %+v", got, again)
	}
}

func TestCalculateTeacherWorkload_empty(t *testing.T) {
	if got := CalculateTeacherWorkload(nil); len(got) != 0 {
		t.Errorf("CalculateTeacherWorkload(nil) = %+v, want empty", got)
	}
}
