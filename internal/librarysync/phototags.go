package librarysync

import (
	"context"
	"log/slog"

	"github.com/starford/travelogue/internal/library"
	"github.com/starford/travelogue/internal/models"
	"github.com/starford/travelogue/internal/source"
)

// loadPhotoTags fills the photo tag lookup, cache first unless skipCache.
// Transient source failures are retried; a permanent one leaves an empty
// lookup.
func (s *Sync) loadPhotoTags(ctx context.Context, skipCache bool) {
	logger := s.logger.With(slog.String("pipeline", "photo_tags"))

	if !skipCache {
		raw, ok, err := s.cache.Get(ctx, s.cfg.PhotoTagsKey)
		switch {
		case err != nil:
			logger.Error("sync: read cached photo tags", slog.String("error", err.Error()))
		case ok:
			tags, err := library.DecodePhotoTags(raw)
			if err == nil {
				logger.Info("sync: photo tags loaded from cache", slog.Int("tags", len(tags)))
				s.storePhotoTags(tags)
				return
			}
			logger.Error("sync: cached photo tags unusable, reloading from source", slog.String("error", err.Error()))
		}
	}

	var list []models.PhotoTag
	for attempt := 1; ; attempt++ {
		var err error
		list, err = s.src.PhotoTags(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
		if source.IsPermanent(err) {
			logger.Warn("sync: photo tags unavailable", slog.String("error", err.Error()))
			list = nil
			break
		}
		logger.Warn("sync: photo tags request failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if !s.wait(ctx) {
			return
		}
	}

	tags := library.PhotoTagMap(list)
	raw, err := library.EncodePhotoTags(tags)
	if err != nil {
		logger.Error("sync: encode photo tags", slog.String("error", err.Error()))
	} else if err := s.cache.Add(ctx, s.cfg.PhotoTagsKey, raw); err != nil {
		logger.Error("sync: persist photo tags", slog.String("error", err.Error()))
	}
	logger.Info("sync: photo tags loaded from source", slog.Int("tags", len(tags)))
	s.storePhotoTags(tags)
}

func (s *Sync) storePhotoTags(tags map[string]string) {
	s.photoTags.Store(&tags)
	s.emit(Event{Kind: EventPhotoTags, State: s.State().String()})
}
