package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Principal is the already-authenticated caller the engine authorizes.
// A nil *Principal denotes the system context used by maintenance paths.
type Principal struct {
	ID     primitive.ObjectID   `json:"id"`
	Name   string               `json:"name,omitempty"`
	Groups []primitive.ObjectID `json:"groups,omitempty"`
	Admin  bool                 `json:"admin"`
}

// InGroup reports membership of the given group.
func (p *Principal) InGroup(id primitive.ObjectID) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Groups {
		if g == id {
			return true
		}
	}
	return false
}
