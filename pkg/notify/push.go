package notify

import (
	"context"
	"encoding/base64"
	"errors"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/userdata"
	"github.com/travigo/busalert/pkg/util"
	"google.golang.org/api/option"
)

var ErrNoPushTarget = errors.New("user has no push notification target")

type PushSender interface {
	SendPush(ctx context.Context, notification *ctdf.Notification) error
}

type PushManager struct {
	FirebaseApp *firebase.App
	Targets     userdata.PushTargetStore
}

func (m *PushManager) Setup() error {
	fireBaseAuthKey := util.GetEnvironmentVariable("BUSALERT_FIREBASE_SERVICE_ACCOUNT", "")
	if fireBaseAuthKey == "" {
		return errors.New("BUSALERT_FIREBASE_SERVICE_ACCOUNT not set")
	}

	decodedKey, err := base64.StdEncoding.DecodeString(fireBaseAuthKey)
	if err != nil {
		return err
	}

	opts := []option.ClientOption{option.WithCredentialsJSON(decodedKey)}

	// Initialize firebase app
	app, err := firebase.NewApp(context.Background(), nil, opts...)
	if err != nil {
		return err
	}

	m.FirebaseApp = app

	return nil
}

func (m *PushManager) SendPush(ctx context.Context, notification *ctdf.Notification) error {
	userPushNotificationTarget, err := m.Targets.GetPushTarget(ctx, notification.TargetUser)
	if errors.Is(err, userdata.ErrNotFound) {
		return ErrNoPushTarget
	} else if err != nil {
		return err
	}

	fcmClient, err := m.FirebaseApp.Messaging(ctx)
	if err != nil {
		return err
	}

	_, err = fcmClient.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Message,
		},
		Data: map[string]string{
			"routeId":   notification.RouteID,
			"stationId": notification.StationID,
		},
		Token: userPushNotificationTarget.PushNotificationToken,
	})
	if err != nil {
		return err
	}

	log.Info().Str("target", notification.TargetUser).Msg("Sent Push Notification")

	return nil
}
