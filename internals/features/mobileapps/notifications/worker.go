package notifications

import (
	"context"
	"log"

	"mobileapps_backend/internals/helpers/metrics"
	"mobileapps_backend/internals/helpers/queue"
	"mobileapps_backend/internals/helpers/secret"
)

// Worker consumes queued tasks and calls the provider's channel.
// Delivery is best effort: failures are logged and the message is acknowledged.
type Worker struct {
	Consumer queue.Consumer
	Cipher   *secret.Cipher
	Channels map[string]Channel
	Fallback Channel
}

func NewWorker(c queue.Consumer, cipher *secret.Cipher, channels ...Channel) *Worker {
	w := &Worker{Consumer: c, Cipher: cipher, Channels: map[string]Channel{}, Fallback: LogChannel{}}
	for _, ch := range channels {
		w.Channels[ch.Name()] = ch
	}
	return w
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[WORKER] notification worker started, channels=%d", len(w.Channels))
	return w.Consumer.Consume(ctx, w.Handle)
}

func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	t, err := DecodeTask(msg.Body)
	if err != nil {
		log.Printf("[WORKER] drop message %s: bad payload: %v", msg.ID, err)
		metrics.NotificationsDelivered.WithLabelValues("unknown", "bad_payload").Inc()
		return nil
	}

	key, err := secret.FromStored(w.Cipher, t.ProviderKey)
	if err != nil {
		w.fail(t, "credentials", err)
		return nil
	}
	sec, err := secret.FromStored(w.Cipher, t.ProviderSecret)
	if err != nil {
		w.fail(t, "credentials", err)
		return nil
	}

	ch, ok := w.Channels[t.Provider]
	if !ok {
		ch = w.Fallback
	}
	p := Publish{
		Key:       key.Plain(),
		Secret:    sec.Plain(),
		Message:   t.Message,
		UserIDs:   t.UserIDs,
		SendToAll: t.SendToAll,
	}
	if t.ProviderAPIURL != nil {
		p.APIURL = *t.ProviderAPIURL
	}
	if err := ch.Publish(ctx, p); err != nil {
		w.fail(t, "error", err)
		return nil
	}
	metrics.NotificationsDelivered.WithLabelValues(t.Provider, "ok").Inc()
	log.Printf("[WORKER] task=%s app=%d delivered via %s", t.ID, t.MobileAppID, ch.Name())
	return nil
}

func (w *Worker) fail(t *Task, outcome string, err error) {
	metrics.NotificationsDelivered.WithLabelValues(t.Provider, outcome).Inc()
	log.Printf("[WORKER] task=%s app=%d provider=%s failed: %v", t.ID, t.MobileAppID, t.Provider, err)
}
