package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.PUT("/:id/read", api.markRead)
	ng.GET("/:id/deliveries", api.queryDeliveries, adminMiddleware())
	ng.GET("/:id/deliveries/stats", api.deliveryStats, adminMiddleware())
	ng.POST("/bulk", api.bulkSend, adminMiddleware())

	ng.GET("/preferences/:type", api.getPreferences)
	ng.PUT("/preferences/:type", api.updatePreferences)

	ng.POST("/push-subscriptions", api.subscribe)
	ng.DELETE("/push-subscriptions", api.unsubscribe)
}

// Handlers

// query lists the authenticated user's in-app notifications, newest first.
func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notifs, err := api.svc.QueryForUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	err = api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) queryDeliveries(ctx echo.Context) error {
	ds, err := api.svc.QueryDeliveries(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying deliveries")
	}
	if ds == nil {
		ds = []notification.Delivery{}
	}
	return ctx.JSON(http.StatusOK, ds)
}

func (api *notificationApi) deliveryStats(ctx echo.Context) error {
	stats, err := api.svc.DeliveryStats(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting delivery stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// bulkSend fans one notification out to many recipients. Delivery failures
// for individual recipients are logged, not reported.
func (api *notificationApi) bulkSend(ctx echo.Context) error {
	var data BulkNotificationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkNotificationRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if !data.Type.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "type", Error: "unknown notification type"})
	}

	api.svc.BulkDeliver(ctx.Request().Context(), data.UserIDs, notification.Notification{
		Type:    data.Type,
		Title:   data.Title,
		Message: data.Message,
		Data:    data.Data,
	})
	return ctx.NoContent(http.StatusAccepted)
}

func (api *notificationApi) getPreferences(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	typ := notification.Type(ctx.Param("type"))
	if !typ.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "type", Error: "unknown notification type"})
	}

	prefs, err := api.svc.GetPreferences(ctx.Request().Context(), claims.Subject, typ)
	if err != nil {
		return errors.Wrap(err, "getting preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *notificationApi) updatePreferences(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	typ := notification.Type(ctx.Param("type"))
	if !typ.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "type", Error: "unknown notification type"})
	}

	var data PreferencesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreferencesRequest")
	}

	prefs, err := api.svc.UpdatePreferences(ctx.Request().Context(), notification.Preferences{
		UserID:       claims.Subject,
		Type:         typ,
		EmailEnabled: data.EmailEnabled,
		PushEnabled:  data.PushEnabled,
		SMSEnabled:   data.SMSEnabled,
	})
	if err != nil {
		return errors.Wrap(err, "updating preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *notificationApi) subscribe(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data SubscribeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubscribeRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Subscribe(ctx.Request().Context(), claims.Subject, notification.PushSubscription{
		Endpoint: data.Endpoint,
		P256dh:   data.P256dh,
		Auth:     data.Auth,
	})
	if err != nil {
		return errors.Wrap(err, "subscribing")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *notificationApi) unsubscribe(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data UnsubscribeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UnsubscribeRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	if err = api.svc.Unsubscribe(ctx.Request().Context(), claims.Subject, data.Endpoint); err != nil {
		return errors.Wrap(err, "unsubscribing")
	}
	return ctx.NoContent(http.StatusNoContent)
}
