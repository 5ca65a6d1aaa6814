// Package dummydb is an in-memory storage backend for tests.
package dummydb

import (
	"sync"

	"github.com/darasa/shule/core/course"
	"github.com/darasa/shule/core/notification"
	"github.com/darasa/shule/core/user"
)

type (
	DB struct {
		user         *userTable
		notification *notificationTable
		course       *courseTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	notificationTable struct {
		sync.RWMutex
		notifications map[string]*notification.Notification
		preferences   map[prefsKey]*notification.Preferences
		subscriptions map[string]*notification.PushSubscription
		deliveries    map[string]*notification.Delivery
	}

	prefsKey struct {
		userID string
		typ    notification.Type
	}

	courseTable struct {
		sync.RWMutex
		categories  map[string]*course.Category
		courses     map[string]*course.Course
		assignments map[string]*course.TeacherAssignment
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		notification: &notificationTable{
			notifications: make(map[string]*notification.Notification),
			preferences:   make(map[prefsKey]*notification.Preferences),
			subscriptions: make(map[string]*notification.PushSubscription),
			deliveries:    make(map[string]*notification.Delivery),
		},
		course: &courseTable{
			categories:  make(map[string]*course.Category),
			courses:     make(map[string]*course.Course),
			assignments: make(map[string]*course.TeacherAssignment),
		},
	}
	return db, nil
}
