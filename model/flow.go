package model

import (
	"encoding/json"
	"fmt"
)

type TriggerType string

const TRIGGER_FIRST_MESSAGE TriggerType = "first-message"
const TRIGGER_KEYWORD_LIST TriggerType = "keyword-list"

type SendFailurePolicy string

const SEND_FAILURE_CONTINUE SendFailurePolicy = "continue"
const SEND_FAILURE_HALT SendFailurePolicy = "halt"

type TriggerConfig struct {
	Type     TriggerType `json:"type"`
	Keywords []string    `json:"keywords,omitempty"`
}

// Flow is the stored definition of one automation scenario. Nodes and
// transitions are kept as flat records addressed by id so that authored
// cycles are representable without pointer loops.
type Flow struct {
	Id            string            `json:"id"`
	TenantId      string            `json:"tenantId"`
	Name          string            `json:"name"`
	Trigger       TriggerConfig     `json:"trigger"`
	Active        bool              `json:"active"`
	OnSendFailure SendFailurePolicy `json:"onSendFailure,omitempty"`
	Nodes         []Node            `json:"nodes"`
	Transitions   []Transition      `json:"transitions"`
}

type NodeType string

const NODE_INICIO NodeType = "INICIO"
const NODE_MENSAGEM NodeType = "MENSAGEM"
const NODE_PERGUNTA NodeType = "PERGUNTA"
const NODE_CONDICAO NodeType = "CONDICAO"
const NODE_TRANSFERENCIA NodeType = "TRANSFERENCIA"
const NODE_WEBHOOK NodeType = "WEBHOOK"
const NODE_ESPERAR NodeType = "ESPERAR"
const NODE_FIM NodeType = "FIM"

// NodeTypes is the closed set of executable node types.
var NodeTypes = []NodeType{
	NODE_INICIO, NODE_MENSAGEM, NODE_PERGUNTA, NODE_CONDICAO,
	NODE_TRANSFERENCIA, NODE_WEBHOOK, NODE_ESPERAR, NODE_FIM,
}

type Node struct {
	Id     string          `json:"id"`
	FlowId string          `json:"flowId"`
	Type   NodeType        `json:"type"`
	Name   string          `json:"name,omitempty"`
	// Position is authoring-canvas metadata, irrelevant to execution.
	Position *Position       `json:"position,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Transition struct {
	Id       string `json:"id"`
	FlowId   string `json:"flowId"`
	OriginId string `json:"originId"`
	DestId   string `json:"destId"`
	Event    string `json:"event"`
	Order    int    `json:"order"`
}

type MensagemConfig struct {
	Text     string `json:"text,omitempty"`
	MediaUrl string `json:"mediaUrl,omitempty"`
}

type PerguntaConfig struct {
	VariableName   string `json:"variableName"`
	ValidationRule string `json:"validationRule,omitempty"`
}

type CondicaoConfig struct {
	Expression   string   `json:"expression"`
	BranchEvents []string `json:"branchEvents"`
	DefaultEvent string   `json:"defaultEvent,omitempty"`
}

type TransferenciaConfig struct {
	TargetQueueOrUser string `json:"targetQueueOrUser"`
}

type WebhookConfig struct {
	Url          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate map[string]any    `json:"bodyTemplate,omitempty"`
	TimeoutMs    int64             `json:"timeoutMs"`
}

type EsperarConfig struct {
	DurationMs int64 `json:"durationMs"`
}

func decodeConfig[T any](n Node, out *T) error {
	if len(n.Config) == 0 {
		return ValidationError{Message: fmt.Sprintf("node %s of type %s has no configuration", n.Id, n.Type)}
	}
	if err := json.Unmarshal(n.Config, out); err != nil {
		return ValidationError{Message: fmt.Sprintf("node %s has malformed %s configuration: %v", n.Id, n.Type, err)}
	}
	return nil
}

func (n Node) MensagemConfig() (*MensagemConfig, error) {
	var c MensagemConfig
	if err := decodeConfig(n, &c); err != nil {
		return nil, err
	}
	if c.Text == "" && c.MediaUrl == "" {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires text or mediaUrl", n.Id)}
	}
	return &c, nil
}

func (n Node) PerguntaConfig() (*PerguntaConfig, error) {
	var c PerguntaConfig
	if err := decodeConfig(n, &c); err != nil {
		return nil, err
	}
	if c.VariableName == "" {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires variableName", n.Id)}
	}
	return &c, nil
}

func (n Node) CondicaoConfig() (*CondicaoConfig, error) {
	var c CondicaoConfig
	if err := decodeConfig(n, &c); err != nil {
		return nil, err
	}
	if c.Expression == "" {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires expression", n.Id)}
	}
	if len(c.BranchEvents) != 2 {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires exactly two branchEvents", n.Id)}
	}
	return &c, nil
}

func (n Node) TransferenciaConfig() (*TransferenciaConfig, error) {
	var c TransferenciaConfig
	if err := decodeConfig(n, &c); err != nil {
		return nil, err
	}
	if c.TargetQueueOrUser == "" {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires targetQueueOrUser", n.Id)}
	}
	return &c, nil
}

func (n Node) WebhookConfig() (*WebhookConfig, error) {
	var c WebhookConfig
	if err := decodeConfig(n, &c); err != nil {
		return nil, err
	}
	if c.Url == "" || c.Method == "" {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires url and method", n.Id)}
	}
	if c.TimeoutMs <= 0 {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires a positive timeoutMs", n.Id)}
	}
	return &c, nil
}

func (n Node) EsperarConfig() (*EsperarConfig, error) {
	var c EsperarConfig
	if err := decodeConfig(n, &c); err != nil {
		return nil, err
	}
	if c.DurationMs <= 0 {
		return nil, ValidationError{Message: fmt.Sprintf("node %s requires a positive durationMs", n.Id)}
	}
	return &c, nil
}
