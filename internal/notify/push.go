package notify

import (
	"encoding/json"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamroom/teamroom/internal/database"
)

// Notifier шлёт Web Push на подписки пользователя.
type Notifier struct {
	db              *database.Database
	vapidPublicKey  string
	vapidPrivateKey string
}

// NewNotifier возвращает nil, если VAPID-ключи не заданы;
// все методы nil-safe.
func NewNotifier(db *database.Database, vapidPublicKey, vapidPrivateKey string) *Notifier {
	if vapidPublicKey == "" || vapidPrivateKey == "" {
		return nil
	}
	return &Notifier{
		db:              db,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
	}
}

func (n *Notifier) VAPIDPublicKey() string {
	if n == nil {
		return ""
	}
	return n.vapidPublicKey
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Send доставляет push на все активные подписки пользователя.
func (n *Notifier) Send(userID uuid.UUID, title, body string) {
	if n == nil {
		return
	}

	subs, err := n.db.GetPushSubscriptions(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("push: failed to load subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	data, _ := json.Marshal(pushPayload{Title: title, Body: body, URL: "/"})

	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}
		go n.sendToSubscription(s, data)
	}
}

func (n *Notifier) sendToSubscription(s *webpush.Subscription, data []byte) {
	resp, err := webpush.SendNotification(data, s, &webpush.Options{
		VAPIDPublicKey:  n.vapidPublicKey,
		VAPIDPrivateKey: n.vapidPrivateKey,
		Subscriber:      "mailto:push@teamroom.local",
		TTL:             86400,
	})
	if err != nil {
		logrus.WithError(err).WithField("endpoint", s.Endpoint).Debug("push: send failed")
		return
	}
	defer resp.Body.Close()

	// 410 Gone и 404 означают, что подписка истекла — подчищаем
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		if err := n.db.DeletePushSubscription(s.Endpoint); err != nil {
			logrus.WithError(err).Warn("push: failed to remove expired subscription")
		}
	}
}
