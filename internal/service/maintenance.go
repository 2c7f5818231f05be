package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// CollectExpired destroys every node whose destroy timestamp has passed and
// returns how many expired nodes it found.
func (f *Filesystem) CollectExpired(ctx context.Context) (int, error) {
	docs, err := f.store.Find(ctx, bson.M{"destroy": bson.M{"$lte": f.now()}}, 0)
	if err != nil {
		return 0, err
	}

	s := f.NewSession(nil)
	destroyed := 0
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return destroyed, err
		}
		_, err := s.FindNodeByID(ctx, docs[i].ID)
		switch {
		case err == nil:
		case errors.Is(err, appErrors.ErrNoLongerAvailable):
			destroyed++
		case errors.Is(err, appErrors.ErrNodeNotFound):
		default:
			return destroyed, err
		}
	}
	if destroyed > 0 {
		f.logger.Info("collected expired nodes", zap.Int("destroyed", destroyed))
	}
	return destroyed, nil
}
