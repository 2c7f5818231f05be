package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// BulkFailure reports one failed item of a bulk operation.
type BulkFailure struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Bulk resolves every id and applies op to it. Failures are collected per
// item; successful items stay committed.
func (s *Session) Bulk(ctx context.Context, ids []string, op func(context.Context, Node) (Node, error)) ([]Node, []BulkFailure) {
	done := make([]Node, 0, len(ids))
	var failures []BulkFailure
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			failures = append(failures, newBulkFailure(id, "", appErrors.Clone(appErrors.ErrInvalidArgument, "invalid node id")))
			continue
		}
		n, err := s.FindNodeByID(ctx, oid)
		if err != nil {
			failures = append(failures, newBulkFailure(id, "", err))
			continue
		}
		result, err := op(ctx, n)
		if err != nil {
			failures = append(failures, newBulkFailure(id, n.Name(), err))
			continue
		}
		if result != nil {
			done = append(done, result)
		}
	}
	return done, failures
}

func newBulkFailure(id, name string, err error) BulkFailure {
	appErr := appErrors.FromError(err)
	return BulkFailure{
		ID:      id,
		Name:    name,
		Error:   appErr.Code,
		Message: appErr.Message,
		Code:    appErr.Status,
	}
}
