// Package storage connects the app to the object storage holding uploaded photos
package storage

import (
	"context"
	"log"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

// NewImgStorage retries until minio answers or ctx is cancelled; nil means cancelled.
func NewImgStorage(ctx context.Context, cfg *config.Config, delay time.Duration) *miniostorage.MinioImageStorage {
	for attempt := 1; ; attempt++ {
		log.Printf("Connecting to IMG-storage (try #%d)...", attempt)
		client, err := miniostorage.NewMinioClient(ctx, cfg)
		if err == nil {
			log.Println("Successfully connected IMG-storage!")
			return client
		}
		log.Printf("Failed to init connection to IMG-storage: %v\nNext retry in %v...", err, delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
