package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/darasa/shule/core/notification"
)

// validate is shared by the request bindings; set once in NewServer.
var validate *validator.Validate

type LoginRequest struct {
	Username string `json:"username" validate:"required"` // or email
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate() error {
	return validate.Struct(r)
}

type LoginResponse struct {
	Token string `json:"token"`
}

type PreferencesRequest struct {
	EmailEnabled bool `json:"email_enabled"`
	PushEnabled  bool `json:"push_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh" validate:"required"`
	Auth     string `json:"auth" validate:"required"`
}

func (r SubscribeRequest) Validate() error {
	return validate.Struct(r)
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

func (r UnsubscribeRequest) Validate() error {
	return validate.Struct(r)
}

type BulkNotificationRequest struct {
	UserIDs []string               `json:"user_ids" validate:"required,min=1,dive,required"`
	Type    notification.Type      `json:"type" validate:"required"`
	Title   string                 `json:"title" validate:"required"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func (r BulkNotificationRequest) Validate() error {
	return validate.Struct(r)
}
