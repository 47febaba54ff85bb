package hierarchy

import (
	"fmt"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const opRollup = "compose_hierarchy"

// ComposeFunc aggregates unit metrics under a topology.
type ComposeFunc func(components []models.RamMetric, topology models.Topology) (models.SystemRamResult, error)

// Rollup composes every parent node bottom-up from its children under root. Leaf metrics come
// from leaves by node key; each parent uses topologies[key] or series when absent. The result
// holds one entry per composed node, keyed by node key.
func Rollup(tree *Tree, root NodeID, leaves map[string]models.RamMetric, topologies map[string]models.Topology, compose ComposeFunc) (map[string]models.SystemRamResult, error) {
	if _, ok := tree.Node(root); !ok {
		return nil, utils.Validation(opRollup, "root", root, "unknown node")
	}

	results := make(map[string]models.SystemRamResult)
	for _, id := range tree.postOrder(root) {
		node, _ := tree.Node(id)
		kids := tree.Children(id)
		if len(kids) == 0 {
			if _, ok := leaves[node.Key]; !ok {
				return nil, utils.Validation(opRollup, "leaves."+node.Key, nil, "leaf component has no metric")
			}
			continue
		}

		metrics := make([]models.RamMetric, 0, len(kids))
		for _, kid := range kids {
			child, _ := tree.Node(kid)
			if res, ok := results[child.Key]; ok {
				metrics = append(metrics, res.AsMetric(child.Name))
				continue
			}
			m := leaves[child.Key]
			if m.Name == "" {
				m.Name = child.Name
			}
			metrics = append(metrics, m)
		}

		topology := topologies[node.Key]
		if topology.Kind == "" {
			topology.Kind = models.TopologySeries
		}
		res, err := compose(metrics, topology)
		if err != nil {
			return nil, fmt.Errorf("compose %s: %w", node.Key, err)
		}
		results[node.Key] = res
	}
	return results, nil
}
