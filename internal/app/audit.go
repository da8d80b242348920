package app

import (
	"context"
	"time"

	"examnotify/internal/cycle"
	"examnotify/internal/eventbus"
	"examnotify/internal/notifier"
	"examnotify/internal/storage"
	logx "examnotify/pkg/logx"
)

const auditWriteTimeout = 5 * time.Second

// runAudit mirrors delivery and cycle events into the store until ctx is done.
// Store failures are logged and never reach the cycle.
func runAudit(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			writeAudit(ctx, e, store, log)
		}
	}
}

func writeAudit(ctx context.Context, e eventbus.Event, store storage.Store, log logx.Logger) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	switch e.Type {
	case eventbus.TopicDeliverySent, eventbus.TopicDeliveryFailed:
		ev, ok := e.Data.(notifier.DeliveryEvent)
		if !ok {
			return
		}
		if err := store.AppendDelivery(wctx, deliveryRecord(ev)); err != nil {
			log.Warn("audit delivery write failed", logx.Err(err))
		}
	case eventbus.TopicCycleCompleted:
		rep, ok := e.Data.(cycle.Report)
		if !ok {
			return
		}
		if err := store.AppendCycle(wctx, cycleRecord(rep)); err != nil {
			log.Warn("audit cycle write failed", logx.Err(err))
		}
	}
}

func deliveryRecord(ev notifier.DeliveryEvent) storage.DeliveryRecord {
	return storage.DeliveryRecord{
		At:             ev.At,
		Kind:           ev.Item.Kind.String(),
		PublishDate:    ev.Item.PublishDate,
		Content:        ev.Item.Content,
		AttachmentLink: ev.Item.AttachmentLink,
		Channel:        ev.Channel,
		MessageID:      ev.MessageID,
		OK:             ev.Error == "",
		Error:          ev.Error,
		TookMS:         ev.Took.Milliseconds(),
	}
}

func cycleRecord(rep cycle.Report) storage.CycleRecord {
	rec := storage.CycleRecord{
		Seq:       rep.Seq,
		Started:   rep.Started,
		Finished:  rep.Finished,
		Canceled:  rep.Canceled,
		Delivered: rep.Delivered(),
		Failed:    rep.Failed(),
	}
	for _, fr := range rep.Feeds {
		if fr.Error == "" {
			continue
		}
		if rec.FeedErrors == nil {
			rec.FeedErrors = make(map[string]string)
		}
		rec.FeedErrors[fr.Kind.String()] = fr.Error
	}
	return rec
}
