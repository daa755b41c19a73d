package flow

import (
	"fmt"

	"github.com/zapflowhq/zapflow/model"
)

// Validate applies the design-time invariants to a flow definition: exactly
// one INICIO node, known node types with well-formed configuration, and
// distinct transition orders per (origin, event) pair. Violations surface as
// model.ValidationError to the authoring caller.
func Validate(def model.Flow) error {
	if def.Id == "" || def.TenantId == "" {
		return model.ValidationError{Message: "flow requires id and tenantId"}
	}
	switch def.Trigger.Type {
	case model.TRIGGER_FIRST_MESSAGE:
	case model.TRIGGER_KEYWORD_LIST:
		if len(def.Trigger.Keywords) == 0 {
			return model.ValidationError{Message: "keyword-list trigger requires at least one keyword"}
		}
	default:
		return model.ValidationError{Message: fmt.Sprintf("unknown trigger type %q", def.Trigger.Type)}
	}
	if def.OnSendFailure != "" && def.OnSendFailure != model.SEND_FAILURE_CONTINUE && def.OnSendFailure != model.SEND_FAILURE_HALT {
		return model.ValidationError{Message: fmt.Sprintf("unknown onSendFailure policy %q", def.OnSendFailure)}
	}

	nodeIds := make(map[string]model.Node, len(def.Nodes))
	inicioCount := 0
	for _, n := range def.Nodes {
		if n.Id == "" {
			return model.ValidationError{Message: "node without id"}
		}
		if _, dup := nodeIds[n.Id]; dup {
			return model.ValidationError{Message: fmt.Sprintf("duplicate node id %s", n.Id)}
		}
		nodeIds[n.Id] = n
		if err := validateNodeConfig(n); err != nil {
			return err
		}
		if n.Type == model.NODE_INICIO {
			inicioCount++
		}
	}
	if inicioCount != 1 {
		return model.ValidationError{Message: fmt.Sprintf("flow %s must have exactly one INICIO node, found %d", def.Id, inicioCount)}
	}

	type originEvent struct {
		origin string
		event  string
		order  int
	}
	seenOrders := make(map[originEvent]bool)
	for _, t := range def.Transitions {
		if _, ok := nodeIds[t.OriginId]; !ok {
			return model.ValidationError{Message: fmt.Sprintf("transition %s references unknown origin node %s", t.Id, t.OriginId)}
		}
		if _, ok := nodeIds[t.DestId]; !ok {
			return model.ValidationError{Message: fmt.Sprintf("transition %s references unknown destination node %s", t.Id, t.DestId)}
		}
		if t.Event == "" {
			return model.ValidationError{Message: fmt.Sprintf("transition %s has no event name", t.Id)}
		}
		key := originEvent{origin: t.OriginId, event: t.Event, order: t.Order}
		if seenOrders[key] {
			return model.ValidationError{Message: fmt.Sprintf("transitions from node %s on event %s have duplicate order %d", t.OriginId, t.Event, t.Order)}
		}
		seenOrders[key] = true
	}
	return nil
}

func validateNodeConfig(n model.Node) error {
	var err error
	switch n.Type {
	case model.NODE_INICIO, model.NODE_FIM:
		// no configuration
	case model.NODE_MENSAGEM:
		_, err = n.MensagemConfig()
	case model.NODE_PERGUNTA:
		_, err = n.PerguntaConfig()
	case model.NODE_CONDICAO:
		_, err = n.CondicaoConfig()
	case model.NODE_TRANSFERENCIA:
		_, err = n.TransferenciaConfig()
	case model.NODE_WEBHOOK:
		_, err = n.WebhookConfig()
	case model.NODE_ESPERAR:
		_, err = n.EsperarConfig()
	default:
		return model.ValidationError{Message: fmt.Sprintf("node %s has unknown type %q", n.Id, n.Type)}
	}
	return err
}
