package documents

import (
	"context"
	"time"
)

// DefaultPollInterval matches the web client's 3-second status poll.
const DefaultPollInterval = 3 * time.Second

// PollStatus re-fetches the document on the given interval until it leaves
// ocr_processing, then returns the settled document. The loop is bound to ctx;
// cancelling the observing context stops the poll immediately.
func PollStatus(ctx context.Context, repo Repo, userID, documentID string, interval time.Duration) (Document, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	doc, err := repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != StatusOCRProcessing {
		return doc, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Document{}, ctx.Err()
		case <-ticker.C:
			doc, err := repo.GetByID(ctx, userID, documentID)
			if err != nil {
				return Document{}, err
			}
			if doc.Status != StatusOCRProcessing {
				return doc, nil
			}
		}
	}
}
