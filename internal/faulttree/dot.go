package faulttree

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// ExportDOT renders a fault tree as a Graphviz digraph: the error code at
// the root, one node per cause weighted by likelihood, and leaf nodes for
// the check steps. Meant for offline inspection of catalog content.
func ExportDOT(d *Definition) (string, error) {
	if d == nil {
		return "", fmt.Errorf("nil definition")
	}

	g := gographviz.NewGraph()
	graphName := quote(d.ErrorCode)
	if err := g.SetName(graphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	root := quote(d.ErrorCode)
	if err := g.AddNode(graphName, root, map[string]string{
		"label": quote(d.ErrorCode + "\\n" + d.Description),
		"shape": "box",
	}); err != nil {
		return "", err
	}

	for i, cause := range d.Causes {
		causeID := quote(fmt.Sprintf("cause_%d", i))
		if err := g.AddNode(graphName, causeID, map[string]string{
			"label": quote(cause.Description),
		}); err != nil {
			return "", err
		}
		if err := g.AddEdge(root, causeID, true, map[string]string{
			"label": quote(strconv.FormatFloat(cause.Likelihood, 'g', -1, 64)),
		}); err != nil {
			return "", err
		}

		for j, step := range cause.Checks {
			stepID := quote(fmt.Sprintf("check_%d_%d", i, j))
			label := step.Description
			if step.ExpectedCondition != "" {
				label += "\\nexpect: " + step.ExpectedCondition
			}
			if err := g.AddNode(graphName, stepID, map[string]string{
				"label": quote(label),
				"shape": "note",
			}); err != nil {
				return "", err
			}
			if err := g.AddEdge(causeID, stepID, true, nil); err != nil {
				return "", err
			}
		}
	}

	return g.String(), nil
}

func quote(s string) string { return `"` + s + `"` }
