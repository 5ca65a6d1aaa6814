package notification

import "fmt"

const fallbackRoute = "/notifications"

// ActionURL maps a notification to the frontend route its deep link should
// open. The switch is exhaustive over Type so a new category fails to compile
// here until it is given a route.
func ActionURL(n Notification) string {
	switch n.Type {
	case TypeCourse:
		return detailRoute("/courses", n, "courseId")
	case TypeAssignment:
		return detailRoute("/assignments", n, "assignmentId")
	case TypeGrade:
		return "/grades"
	case TypeLiveClass:
		return detailRoute("/live-classes", n, "classId")
	case TypePayment:
		return "/payments"
	case TypeMessage:
		return "/messages"
	case TypeAnnouncement:
		return detailRoute("/announcements", n, "announcementId")
	case TypeSystem, TypeQuiz:
		return fallbackRoute
	}
	return fallbackRoute
}

// detailRoute builds "<base>/<id>" from the payload key, falling back to the
// notification list when the payload does not carry the id.
func detailRoute(base string, n Notification, dataKey string) string {
	id := dataString(n.Data, dataKey)
	if id == "" {
		return fallbackRoute
	}
	return base + "/" + id
}

func dataString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
