package notification

import "testing"

func TestActionURL(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{
			name: "course with id",
			n:    Notification{Type: TypeCourse, Data: map[string]interface{}{"courseId": "crs-1"}},
			want: "/courses/crs-1",
		},
		{
			name: "course without id falls back",
			n:    Notification{Type: TypeCourse},
			want: "/notifications",
		},
		{
			name: "assignment with id",
			n:    Notification{Type: TypeAssignment, Data: map[string]interface{}{"assignmentId": "asg-1"}},
			want: "/assignments/asg-1",
		},
		{
			name: "grade",
			n:    Notification{Type: TypeGrade},
			want: "/grades",
		},
		{
			name: "live class with id",
			n:    Notification{Type: TypeLiveClass, Data: map[string]interface{}{"classId": "cls-1"}},
			want: "/live-classes/cls-1",
		},
		{
			name: "payment",
			n:    Notification{Type: TypePayment},
			want: "/payments",
		},
		{
			name: "message",
			n:    Notification{Type: TypeMessage},
			want: "/messages",
		},
		{
			name: "announcement with id",
			n:    Notification{Type: TypeAnnouncement, Data: map[string]interface{}{"announcementId": "ann-1"}},
			want: "/announcements/ann-1",
		},
		{
			name: "announcement with nil id falls back",
			n:    Notification{Type: TypeAnnouncement, Data: map[string]interface{}{"announcementId": nil}},
			want: "/notifications",
		},
		{
			name: "system",
			n:    Notification{Type: TypeSystem},
			want: "/notifications",
		},
		{
			name: "quiz",
			n:    Notification{Type: TypeQuiz},
			want: "/notifications",
		},
		{
			name: "unknown type falls back",
			n:    Notification{Type: Type("carrier_pigeon")},
			want: "/notifications",
		},
		{
			name: "non-string id is stringified",
			n:    Notification{Type: TypeCourse, Data: map[string]interface{}{"courseId": 42}},
			want: "/courses/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActionURL(tt.n); got != tt.want {
				t.Errorf("ActionURL() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range AllTypes {
		if !typ.Valid() {
			t.Errorf("Type(%q).Valid() = false; want true", typ)
		}
	}
	if Type("carrier_pigeon").Valid() {
		t.Error(`Type("carrier_pigeon").Valid() = true; want false`)
	}
	if Type("").Valid() {
		t.Error(`Type("").Valid() = true; want false`)
	}
}
