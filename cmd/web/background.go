package main

import (
	"context"
	"time"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
)

// viewWorker drains the view queue into the view store until the queue is
// closed, then closes done.
func (app *application) viewWorker(done chan<- struct{}) {
	defer close(done)
	for ev := range app.viewQueue {
		if err := app.views.Record(context.Background(), ev); err != nil {
			app.errorLog.Println("Failed to record view:", err)
		}
	}
}

// trackView enqueues a view without blocking the request. A full queue
// drops the event.
func (app *application) trackView(userID, productID uuid.UUID) {
	select {
	case app.viewQueue <- models.ViewEvent{UserID: userID, ProductID: productID, ViewedAt: time.Now()}:
	default:
		app.errorLog.Printf("view queue full, dropping view of %s by %s", productID, userID)
	}
}
