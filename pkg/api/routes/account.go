package routes

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/userdata"
)

var validate = validator.New()

type accountHandlers struct {
	store        userdata.Store
	publishEvent func(event ctdf.Event) error
}

func AccountRouter(router fiber.Router, store userdata.Store, publishEvent func(event ctdf.Event) error) {
	handlers := &accountHandlers{
		store:        store,
		publishEvent: publishEvent,
	}

	router.Get("/bookmarks/routes", handlers.listBookmarks)
	router.Post("/bookmarks/routes", handlers.postBookmark)
	router.Delete("/bookmarks/routes/:routeId/stations/:stationId", handlers.deleteBookmark)

	router.Get("/bookmarks/stations", handlers.listStationBookmarks)
	router.Post("/bookmarks/stations", handlers.postStationBookmark)
	router.Get("/bookmarks/stations/:stationId/status", handlers.getStationBookmarkStatus)
	router.Delete("/bookmarks/stations/:stationId", handlers.deleteStationBookmark)

	router.Get("/notifications/settings", handlers.getNotificationSettings)
	router.Put("/notifications/settings", handlers.putNotificationSettings)

	router.Get("/notifications", handlers.listNotifications)
	router.Get("/notifications/unread", handlers.listUnreadNotifications)
	router.Get("/notifications/unread/count", handlers.countUnreadNotifications)
	router.Put("/notifications/read", handlers.markAllNotificationsRead)
	router.Put("/notifications/read-all", handlers.markAllNotificationsRead)
	router.Put("/notifications/:notificationId/read", handlers.markNotificationRead)

	router.Post("/notificationtoken", handlers.postNotificationToken)
}

// AccountIdentity trusts the userId query parameter or X-User-Id header.
// Only used when no token issuer is configured.
func AccountIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Query("userId")
		if userID == "" {
			userID = c.Get("X-User-Id")
		}

		if userID == "" {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "userId is required",
			})
		}

		c.Locals("account_userid", userID)

		return c.Next()
	}
}

func accountUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("account_userid").(string)

	return userID
}

func (h *accountHandlers) publish(eventType ctdf.EventType, userID string) {
	if h.publishEvent == nil {
		return
	}

	if err := h.publishEvent(ctdf.NewUserEvent(eventType, userID)); err != nil {
		log.Error().Err(err).Str("user", userID).Str("type", string(eventType)).Msg("Failed to publish event")
	}
}

func (h *accountHandlers) listBookmarks(c *fiber.Ctx) error {
	userID := accountUserID(c)

	bookmarks, err := h.store.ListBookmarks(c.UserContext(), userID)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(bookmarks)
}

func (h *accountHandlers) postBookmark(c *fiber.Ctx) error {
	var requestBody struct {
		RouteID     string `json:"routeId" validate:"required"`
		RouteName   string `json:"routeName"`
		RouteNumber string `json:"routeNumber"`
		StationID   string `json:"stationId" validate:"required"`
		StationName string `json:"stationName"`
		StaOrder    string `json:"staOrder" validate:"required"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validate.Struct(requestBody); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	userID := accountUserID(c)

	bookmark := &ctdf.BookmarkedRoute{
		UserID:           userID,
		RouteID:          requestBody.RouteID,
		RouteName:        requestBody.RouteName,
		RouteNumber:      requestBody.RouteNumber,
		StationID:        requestBody.StationID,
		StationName:      requestBody.StationName,
		StaOrder:         requestBody.StaOrder,
		CreationDateTime: time.Now(),
	}

	if err := h.store.AddBookmark(c.UserContext(), bookmark); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.publish(ctdf.EventTypeBookmarksChanged, userID)

	c.SendStatus(fiber.StatusCreated)
	return c.JSON(bookmark)
}

func (h *accountHandlers) deleteBookmark(c *fiber.Ctx) error {
	userID := accountUserID(c)

	err := h.store.RemoveBookmark(c.UserContext(), userID, c.Params("routeId"), c.Params("stationId"))
	if errors.Is(err, userdata.ErrNotFound) {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Bookmark not found",
		})
	} else if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.publish(ctdf.EventTypeBookmarksChanged, userID)

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func (h *accountHandlers) listStationBookmarks(c *fiber.Ctx) error {
	bookmarks, err := h.store.ListStationBookmarks(c.UserContext(), accountUserID(c))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(bookmarks)
}

func (h *accountHandlers) postStationBookmark(c *fiber.Ctx) error {
	var requestBody struct {
		StationID   string `json:"stationId" validate:"required"`
		StationName string `json:"stationName"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validate.Struct(requestBody); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	bookmark := &ctdf.BookmarkedStation{
		UserID:           accountUserID(c),
		StationID:        requestBody.StationID,
		StationName:      requestBody.StationName,
		CreationDateTime: time.Now(),
	}
	if bookmark.StationName == "" {
		bookmark.StationName = ctdf.DefaultStationName(bookmark.StationID)
	}

	// Station bookmarks never drive alerts so no event is published
	if err := h.store.AddStationBookmark(c.UserContext(), bookmark); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.SendStatus(fiber.StatusCreated)
	return c.JSON(bookmark)
}

func (h *accountHandlers) getStationBookmarkStatus(c *fiber.Ctx) error {
	bookmarked, err := userdata.IsStationBookmarked(c.UserContext(), h.store, accountUserID(c), c.Params("stationId"))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"isBookmarked": bookmarked,
	})
}

func (h *accountHandlers) deleteStationBookmark(c *fiber.Ctx) error {
	err := h.store.RemoveStationBookmark(c.UserContext(), accountUserID(c), c.Params("stationId"))
	if errors.Is(err, userdata.ErrNotFound) {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Bookmark not found",
		})
	} else if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func (h *accountHandlers) getNotificationSettings(c *fiber.Ctx) error {
	threshold, err := h.store.GetAlertThreshold(c.UserContext(), accountUserID(c))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"minutesBefore":  threshold.MinutesBefore,
		"enabled":        threshold.Enabled,
		"minuteOptions":  ctdf.AlertThresholdMinuteOptions,
		"defaultMinutes": ctdf.DefaultAlertThresholdMinutes,
	})
}

func (h *accountHandlers) putNotificationSettings(c *fiber.Ctx) error {
	var requestBody struct {
		MinutesBefore *int  `json:"minutesBefore"`
		Enabled       *bool `json:"enabled"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID := accountUserID(c)

	threshold, err := h.store.GetAlertThreshold(c.UserContext(), userID)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Fields left out of the body keep their stored value
	threshold.UserID = userID
	if requestBody.MinutesBefore != nil {
		threshold.MinutesBefore = *requestBody.MinutesBefore
	}
	if requestBody.Enabled != nil {
		threshold.Enabled = *requestBody.Enabled
	}

	if err := validate.Struct(threshold); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "minutesBefore must be one of 3, 5, 10 or 15",
		})
	}

	if err := h.store.SaveAlertThreshold(c.UserContext(), threshold); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.publish(ctdf.EventTypeSettingsChanged, userID)

	return c.JSON(fiber.Map{
		"minutesBefore": threshold.MinutesBefore,
		"enabled":       threshold.Enabled,
	})
}

func (h *accountHandlers) listNotifications(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", userdata.DefaultPageSize)

	notifications, total, err := h.store.ListNotifications(c.UserContext(), accountUserID(c), page, size)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         total,
		"page":          page,
		"size":          size,
	})
}

func (h *accountHandlers) listUnreadNotifications(c *fiber.Ctx) error {
	notifications, err := h.store.ListUnread(c.UserContext(), accountUserID(c))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
	})
}

func (h *accountHandlers) countUnreadNotifications(c *fiber.Ctx) error {
	count, err := h.store.CountUnread(c.UserContext(), accountUserID(c))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"unread": count,
	})
}

func (h *accountHandlers) markNotificationRead(c *fiber.Ctx) error {
	err := h.store.MarkRead(c.UserContext(), accountUserID(c), c.Params("notificationId"))
	if errors.Is(err, userdata.ErrNotFound) {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Notification not found",
		})
	} else if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func (h *accountHandlers) markAllNotificationsRead(c *fiber.Ctx) error {
	updated, err := h.store.MarkAllRead(c.UserContext(), accountUserID(c))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"updated": updated,
	})
}

func (h *accountHandlers) postNotificationToken(c *fiber.Ctx) error {
	var requestBody struct {
		Token string
	}
	c.BodyParser(&requestBody)

	userID := accountUserID(c)

	if userID == "" {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "No userid set",
		})
	}

	if requestBody.Token == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "No token set",
		})
	}

	userPushNotificationTarget := &ctdf.UserPushNotificationTarget{
		UserID:                userID,
		PushNotificationToken: requestBody.Token,
		ModificationDateTime:  time.Now(),
	}

	if err := h.store.SavePushTarget(c.UserContext(), userPushNotificationTarget); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
