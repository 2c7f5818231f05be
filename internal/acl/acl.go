// Package acl decides whether a principal may read, write or manage a node.
package acl

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/repository"
	appErrors "github.com/noah-isme/drive-api/pkg/errors"
)

// Mode is the kind of access being checked.
type Mode string

const (
	ModeRead   Mode = "r"
	ModeWrite  Mode = "w"
	ModeManage Mode = "m"
)

type shareLoader interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error)
}

// Filter evaluates access rules against nodes and share roots.
type Filter struct {
	shares    shareLoader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFilter constructs the access filter. shares resolves share roots by id.
func NewFilter(shares shareLoader, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{shares: shares, validator: validator.New(), logger: logger}
}

// Allowed reports whether principal may access doc in the given mode.
//
// A nil principal is the system context and always passes. References are
// judged by the share they point at, so a revoked member loses its reference
// even though it owns the reference document. Owners pass. Nodes outside any
// share carry no ACL and are readable by whoever reaches them. Share roots and
// their members are judged by the root's ACL; manage requires ownership.
func (f *Filter) Allowed(ctx context.Context, doc *models.NodeDocument, principal *models.Principal, mode Mode) (bool, error) {
	if principal == nil {
		return true, nil
	}
	if doc == nil {
		return false, nil
	}

	if doc.IsReference() {
		share, err := f.loadShare(ctx, *doc.Reference)
		if err != nil || share == nil {
			return false, err
		}
		if share.Owner == principal.ID {
			return true, nil
		}
		if mode == ModeManage {
			return false, nil
		}
		return Satisfies(Effective(share.ACL, principal), mode), nil
	}

	if doc.Owner == principal.ID {
		return true, nil
	}

	switch {
	case doc.IsShare():
		if mode == ModeManage {
			return false, nil
		}
		return Satisfies(Effective(doc.ACL, principal), mode), nil
	case doc.IsShareMember():
		share, err := f.loadShare(ctx, doc.Shared.Share)
		if err != nil || share == nil {
			return false, err
		}
		if share.Owner == principal.ID {
			return true, nil
		}
		if mode == ModeManage {
			return false, nil
		}
		return Satisfies(Effective(share.ACL, principal), mode), nil
	}

	return mode == ModeRead, nil
}

// Check is Allowed returning a Forbidden error carrying the denied mode.
func (f *Filter) Check(ctx context.Context, doc *models.NodeDocument, principal *models.Principal, mode Mode) error {
	ok, err := f.Allowed(ctx, doc, principal, mode)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Forbidden(string(mode))
	}
	return nil
}

// Validate checks a proposed ACL before it is stored on a share root.
func (f *Filter) Validate(entries []models.ACLEntry) error {
	for i := range entries {
		if err := f.validator.Struct(entries[i]); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("invalid acl entry %d", i))
		}
	}
	return nil
}

// Restrict returns the bulk predicate baked into traversal queries. It keeps
// owned nodes, nodes without an ACL and nodes whose ACL grants the principal
// anything but deny. The system context is unrestricted.
func Restrict(principal *models.Principal) bson.M {
	if principal == nil {
		return nil
	}
	subject := bson.A{bson.M{"type": models.ACLTypeUser, "id": principal.ID}}
	if len(principal.Groups) > 0 {
		subject = append(subject, bson.M{"type": models.ACLTypeGroup, "id": bson.M{"$in": principal.Groups}})
	}
	return bson.M{"$or": bson.A{
		bson.M{"owner": principal.ID},
		bson.M{"acl": bson.M{"$exists": false}},
		bson.M{"acl": bson.M{"$elemMatch": bson.M{
			"$or":  subject,
			"priv": bson.M{"$ne": models.PrivDeny},
		}}},
	}}
}

// Effective returns the privilege the ACL grants the principal. A user entry
// takes precedence over group entries; among groups a deny wins, otherwise
// the highest privilege applies. No matching entry yields deny.
func Effective(entries []models.ACLEntry, principal *models.Principal) models.Privilege {
	if principal == nil {
		return models.PrivReadWrite
	}
	var (
		group   models.Privilege
		matched bool
	)
	for _, e := range entries {
		switch e.Type {
		case models.ACLTypeUser:
			if e.ID == principal.ID {
				return e.Priv
			}
		case models.ACLTypeGroup:
			if !principal.InGroup(e.ID) {
				continue
			}
			if e.Priv.Rank() == 0 {
				group, matched = models.PrivDeny, true
				continue
			}
			if !matched || (group != models.PrivDeny && e.Priv.Rank() > group.Rank()) {
				group, matched = e.Priv, true
			}
		}
	}
	if !matched {
		return models.PrivDeny
	}
	return group
}

// Revoked reports whether the ACL denies read to a user whatever groups the
// user belongs to. A user entry decides alone. Without one the user is
// revoked only when no group entry grants read.
func Revoked(entries []models.ACLEntry, user primitive.ObjectID) bool {
	for _, e := range entries {
		if e.Type == models.ACLTypeUser && e.ID == user {
			return !Satisfies(e.Priv, ModeRead)
		}
	}
	for _, e := range entries {
		if e.Type == models.ACLTypeGroup && Satisfies(e.Priv, ModeRead) {
			return false
		}
	}
	return true
}

// Satisfies reports whether a privilege grants the mode. Read needs r or rw,
// write needs w or rw. Manage is never granted through an ACL.
func Satisfies(priv models.Privilege, mode Mode) bool {
	switch mode {
	case ModeRead:
		return priv == models.PrivRead || priv == models.PrivReadWrite
	case ModeWrite:
		return priv == models.PrivWrite || priv == models.PrivReadWrite
	}
	return false
}

func (f *Filter) loadShare(ctx context.Context, id primitive.ObjectID) (*models.NodeDocument, error) {
	if f.shares == nil {
		return nil, nil
	}
	share, err := f.shares.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			f.logger.Debug("share root missing", zap.String("share", id.Hex()))
			return nil, nil
		}
		return nil, err
	}
	if !share.IsShare() {
		return nil, nil
	}
	return share, nil
}
