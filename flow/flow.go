package flow

import (
	"sort"

	"github.com/zapflowhq/zapflow/model"
)

// Flow is the runtime form of a flow definition: nodes and transitions
// indexed by id, ready for the interpreter. Cycles in the authored graph are
// fine here, the interpreter bounds synchronous work with a step cap.
type Flow struct {
	Id            string
	TenantId      string
	Name          string
	Root          string
	Trigger       model.TriggerConfig
	OnSendFailure model.SendFailurePolicy
	Nodes         map[string]model.Node
	// transitionsByOrigin holds each node's outgoing transitions sorted by
	// (event, order) so resolution scans are deterministic.
	transitionsByOrigin map[string][]model.Transition
}

// FromModel converts a stored definition into its runtime form. The
// definition is assumed validated; only the INICIO lookup can fail here.
func FromModel(def model.Flow) (*Flow, error) {
	nodes := make(map[string]model.Node, len(def.Nodes))
	root := ""
	for _, n := range def.Nodes {
		nodes[n.Id] = n
		if n.Type == model.NODE_INICIO {
			root = n.Id
		}
	}
	if root == "" {
		return nil, model.ValidationError{Message: "flow " + def.Id + " has no INICIO node"}
	}
	byOrigin := make(map[string][]model.Transition)
	for _, t := range def.Transitions {
		byOrigin[t.OriginId] = append(byOrigin[t.OriginId], t)
	}
	for origin := range byOrigin {
		ts := byOrigin[origin]
		sort.Slice(ts, func(i, j int) bool {
			if ts[i].Event != ts[j].Event {
				return ts[i].Event < ts[j].Event
			}
			return ts[i].Order < ts[j].Order
		})
	}
	policy := def.OnSendFailure
	if policy == "" {
		policy = model.SEND_FAILURE_CONTINUE
	}
	return &Flow{
		Id:                  def.Id,
		TenantId:            def.TenantId,
		Name:                def.Name,
		Root:                root,
		Trigger:             def.Trigger,
		OnSendFailure:       policy,
		Nodes:               nodes,
		transitionsByOrigin: byOrigin,
	}, nil
}

// Node returns the node record for an id.
func (f *Flow) Node(id string) (model.Node, bool) {
	n, ok := f.Nodes[id]
	return n, ok
}

// Transitions returns the outgoing transitions of a node.
func (f *Flow) Transitions(originId string) []model.Transition {
	return f.transitionsByOrigin[originId]
}
