// Package tools 定义模型可调用的工具集合，并负责批量执行。
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
)

// Kind is the closed set of tools the session understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindSearchKnowledgeBase
	KindShowScreenImage
	KindShowKnowledgeImage
)

const (
	NameSearchKnowledgeBase = "search_knowledge_base"
	NameShowScreenImage     = "show_screen_image"
	NameShowKnowledgeImage  = "show_knowledge_image"
)

func (k Kind) String() string {
	switch k {
	case KindSearchKnowledgeBase:
		return NameSearchKnowledgeBase
	case KindShowScreenImage:
		return NameShowScreenImage
	case KindShowKnowledgeImage:
		return NameShowKnowledgeImage
	default:
		return "unknown"
	}
}

// KindOf maps a declared tool name to its kind.
func KindOf(name string) Kind {
	switch name {
	case NameSearchKnowledgeBase:
		return KindSearchKnowledgeBase
	case NameShowScreenImage:
		return KindShowScreenImage
	case NameShowKnowledgeImage:
		return KindShowKnowledgeImage
	default:
		return KindUnknown
	}
}

type SearchArgs struct {
	Query string `json:"query"`
}

type ScreenArgs struct {
	ScreenName string `json:"screen_name"`
}

type SnippetImageArgs struct {
	SnippetID string `json:"snippet_id"`
}

// Invocation 是解析后的工具调用，仅与 Kind 对应的参数字段有效。
type Invocation struct {
	Kind   Kind
	CallID string
	Name   string

	Search  SearchArgs
	Screen  ScreenArgs
	Snippet SnippetImageArgs

	// ArgsErr 非空表示参数无法解码，执行时直接返回错误结果。
	ArgsErr error
}

// Parse decodes a model function call into a typed invocation. Empty arguments
// mean "{}"; malformed arguments are reported through ArgsErr.
func Parse(call ai.FunctionCall) Invocation {
	inv := Invocation{Kind: KindOf(call.Name), CallID: call.ID, Name: call.Name}
	raw := []byte(strings.TrimSpace(call.Arguments))
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var err error
	switch inv.Kind {
	case KindSearchKnowledgeBase:
		err = json.Unmarshal(raw, &inv.Search)
	case KindShowScreenImage:
		err = json.Unmarshal(raw, &inv.Screen)
	case KindShowKnowledgeImage:
		err = json.Unmarshal(raw, &inv.Snippet)
	}
	if err != nil {
		inv.ArgsErr = fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
	}
	return inv
}

// Declarations returns the tool schema handed to the model.
func Declarations() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: NameSearchKnowledgeBase,
			Desc: "Search the internal technical support database. Use this for specific technical questions or business info.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     `The search query (e.g., "login error", "pricing", "api key").`,
					Required: true,
				},
			}),
		},
		{
			Name: NameShowScreenImage,
			Desc: "Show an illustrative screenshot of a specific screen in the e-stock system to the user.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"screen_name": {
					Type:     schema.String,
					Desc:     "The name of the screen to show.",
					Enum:     knowledge.ScreenNames(),
					Required: true,
				},
			}),
		},
		{
			Name: NameShowKnowledgeImage,
			Desc: "Display an image associated with a specific knowledge snippet/info that was added by the admin.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"snippet_id": {
					Type:     schema.String,
					Desc:     "The ID of the snippet image to show.",
					Required: true,
				},
			}),
		},
	}
}

// Result 是返回给模型的工具结果，带原调用的名称与 ID。
type Result struct {
	CallID   string
	Name     string
	Response map[string]any
}

// Failed reports whether the result carries an error payload.
func (r Result) Failed() bool {
	_, ok := r.Response["error"]
	return ok
}

// Message converts the result into the tool turn sent back to the model.
func (r Result) Message() *schema.Message {
	return ai.ToolResultMessage(r.Name, r.CallID, r.Response)
}

// Event 是工具执行产生的、需要追加到会话记录的图片消息。
type Event struct {
	CallID   string
	ImageURL string
}

// Batch is the outcome of one dispatch: transcript events plus model results,
// both in call order.
type Batch struct {
	Events  []Event
	Results []Result
}

// Messages returns the tool turns for every result, in call order.
func (b Batch) Messages() []*schema.Message {
	out := make([]*schema.Message, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.Message()
	}
	return out
}

func okResult(inv Invocation, text string) Result {
	return Result{CallID: inv.CallID, Name: inv.Name, Response: map[string]any{"result": text}}
}

func errResult(inv Invocation, text string) Result {
	return Result{CallID: inv.CallID, Name: inv.Name, Response: map[string]any{"error": text}}
}

func (inv Invocation) String() string {
	return fmt.Sprintf("%s(%s)", inv.Kind, inv.CallID)
}
