package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/disiqueira/gotree/v3"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/internal/service"
)

// buildTree renders dir and its descendants down to depth levels. A depth
// below one walks the whole subtree.
func buildTree(ctx context.Context, dir *service.Collection, mode models.DeletedMode, depth int) (gotree.Tree, error) {
	tree := gotree.New(dir.Path())
	if err := addChildren(ctx, tree, dir, mode, depth, 1); err != nil {
		return nil, err
	}
	return tree, nil
}

func addChildren(ctx context.Context, tree gotree.Tree, dir *service.Collection, mode models.DeletedMode, depth, level int) error {
	children, _, err := dir.Children(ctx, mode, models.Page{})
	if err != nil {
		return err
	}
	for _, child := range children {
		sub := tree.Add(nodeLabel(child))
		coll, ok := child.(*service.Collection)
		if !ok || (depth > 0 && level >= depth) {
			continue
		}
		if err := addChildren(ctx, sub, coll, mode, depth, level+1); err != nil {
			return err
		}
	}
	return nil
}

func nodeLabel(n service.Node) string {
	label := n.Name()
	if n.IsDirectory() {
		label += "/"
	}
	if f, ok := n.(*service.File); ok {
		label = fmt.Sprintf("%s (v%d)", label, f.Version())
	}
	if n.IsDeleted() {
		label += " [deleted]"
	}
	return label
}

// writeDelta prints one delta page as indented JSON.
func writeDelta(w io.Writer, page *models.DeltaPage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}
