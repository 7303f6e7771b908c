package format

import (
	"path/filepath"

	"pkt.systems/idemy/schema"
)

// TreeNode is a directory entry with its loaded children.
type TreeNode struct {
	Entry    schema.Entry
	Children []TreeNode
	// Truncated is set when children exist but were not loaded.
	Truncated bool
}

// Tree renders nodes as an indented tree. Directories end in a separator.
func Tree(root string, nodes []TreeNode) []string {
	lines := []string{root}
	appendTree(&lines, nodes, "")
	return lines
}

func appendTree(lines *[]string, nodes []TreeNode, prefix string) {
	for i, node := range nodes {
		last := i == len(nodes)-1
		branch := "├── "
		next := prefix + "│   "
		if last {
			branch = "└── "
			next = prefix + "    "
		}
		name := node.Entry.Name
		if node.Entry.IsDir {
			name += string(filepath.Separator)
			if node.Truncated {
				name += " …"
			}
		}
		*lines = append(*lines, prefix+branch+name)
		if len(node.Children) > 0 {
			appendTree(lines, node.Children, next)
		}
	}
}
