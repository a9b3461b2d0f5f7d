package planner

import "github.com/kiranshivaraju/contentpilot/pkg/models"

// Kind discriminates the Response variants.
type Kind string

const (
	KindClarify Kind = "clarify"
	KindPlan    Kind = "content_plan"
	KindActions Kind = "actions"
	KindMessage Kind = "message"
)

// Response is one of *ClarifyResponse, *PlanResponse, *ActionsResponse or
// *MessageResponse. The set is closed; switch on the concrete type.
type Response interface {
	Kind() Kind
	sealed()
}

// ClarifyResponse asks the user a question before anything is planned.
type ClarifyResponse struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// PlanResponse carries a plan that has already been persisted as a draft.
type PlanResponse struct {
	Plan    *models.ContentPlan `json:"plan"`
	Message string              `json:"message,omitempty"`
}

// ActionsResponse lists direct provider actions proposed by the model.
type ActionsResponse struct {
	Actions []Action `json:"actions"`
	Message string   `json:"message,omitempty"`
}

// Action is a single proposed step. Name comes from the step's action, type or
// tool field; every other field is kept in Params.
type Action struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// MessageResponse is plain text, used when the model did not answer with structure.
type MessageResponse struct {
	Text string `json:"text"`
}

func (*ClarifyResponse) Kind() Kind { return KindClarify }
func (*PlanResponse) Kind() Kind    { return KindPlan }
func (*ActionsResponse) Kind() Kind { return KindActions }
func (*MessageResponse) Kind() Kind { return KindMessage }

func (*ClarifyResponse) sealed() {}
func (*PlanResponse) sealed()    {}
func (*ActionsResponse) sealed() {}
func (*MessageResponse) sealed() {}
