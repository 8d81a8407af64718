package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classtrack/internal/absence"
	"classtrack/internal/config"
	"classtrack/internal/gateway"
	"classtrack/internal/notify"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

func main() {
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:events")
	}

	absRepo := absence.NewRepository(db.Client)
	notifyRepo := notify.NewRepository(db.Client)
	delivery := gateway.New(cfg.GatewayURL, cfg.GatewaySkip)

	if err := delivery.Health(context.Background()); err != nil {
		log.Printf("warning: delivery service unhealthy at startup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume failed: %v", err)
	}

	w := &worker{absences: absRepo, notifications: notifyRepo, delivery: delivery}

	go func() {
		for msg := range msgs {
			if err := w.handle(ctx, msg); err != nil {
				log.Printf("handle %s message failed: %v", msg.Type, err)
			}
		}
	}()

	log.Println("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("worker shutting down")
}

type worker struct {
	absences      *absence.Repository
	notifications *notify.Repository
	delivery      *gateway.Client
}

func (w *worker) handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeAbsence:
		return w.handleAbsence(ctx, string(msg.Body))
	case queue.TypeJustification:
		return w.handleJustification(ctx, string(msg.Body))
	default:
		log.Printf("skipping unknown message type %q", msg.Type)
		return nil
	}
}

// handleAbsence notifies the student a new absence was recorded and pushes
// an alert through the external delivery service.
func (w *worker) handleAbsence(ctx context.Context, recordID string) error {
	rec, err := w.absences.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load absence %s: %w", recordID, err)
	}

	n := notify.Notification{
		Title:   "Absence recorded",
		Message: fmt.Sprintf("An absence of %.1fh in %s was recorded on %s.", rec.Hours, rec.Subject, rec.Date.Format("2006-01-02")),
		Type:    notify.TypeWarning,
	}
	if _, err := w.notifications.Insert(ctx, rec.StudentID, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	result, err := w.delivery.Send(ctx, gateway.Alert{
		UserID:  rec.StudentID,
		Title:   n.Title,
		Message: n.Message,
	})
	if err != nil {
		// Notification is already persisted; delivery is best-effort.
		log.Printf("delivery send failed for %s: %v", rec.StudentID, err)
		return nil
	}
	log.Printf("absence %s processed, delivery %s", rec.ID, result.MessageID)
	return nil
}

// handleJustification tells the student the review outcome.
func (w *worker) handleJustification(ctx context.Context, justificationID string) error {
	j, err := w.absences.GetJustification(ctx, justificationID)
	if err != nil {
		return fmt.Errorf("load justification %s: %w", justificationID, err)
	}
	if j == nil {
		log.Printf("justification %s not found, dropping", justificationID)
		return nil
	}

	n := notify.Notification{Type: notify.TypeSuccess, Title: "Justification approved"}
	if j.Status == absence.ReviewRejected {
		n.Type = notify.TypeError
		n.Title = "Justification rejected"
	}
	n.Message = fmt.Sprintf("Your justification for the absence on %s was %s.", j.Date.Format("2006-01-02"), j.Status)

	studentID, err := w.absences.StudentIDForJustification(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("resolve student for justification %s: %w", j.ID, err)
	}
	if _, err := w.notifications.Insert(ctx, studentID, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	log.Printf("justification %s processed (%s)", j.ID, j.Status)
	return nil
}
