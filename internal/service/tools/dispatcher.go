package tools

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

const (
	resultScreenShown  = "Image displayed to the user successfully."
	resultSnippetShown = "Snippet image displayed successfully."
	errScreenMissing   = "Image not found."
	errSnippetMissing  = "Snippet image not found."
	errUnknownFunction = "Unknown function"
	noMatch            = "No exact match found in KB, rely on System Documentation."
)

// Knowledge is the lookup surface the dispatcher needs.
type Knowledge interface {
	Search(ctx context.Context, query string) (string, bool, error)
	ScreenImage(name string) (string, bool)
	Snippets(ctx context.Context) ([]knowledge.Snippet, error)
}

// Dispatcher 并发执行一批工具调用。工具错误永远以结构化结果返回，不会向调用方抛出。
type Dispatcher struct {
	kb  Knowledge
	log *logger.Logger
}

func NewDispatcher(kb Knowledge, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{kb: kb, log: log.With("component", "tools")}
}

// Dispatch runs every call concurrently and joins before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []ai.FunctionCall) Batch {
	results := make([]Result, len(calls))
	events := make([]*Event, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		i, inv := i, Parse(call)
		g.Go(func() error {
			res, ev := d.execute(ctx, inv)
			results[i] = res
			events[i] = ev
			return nil
		})
	}
	_ = g.Wait()

	batch := Batch{Results: results}
	for _, ev := range events {
		if ev != nil {
			batch.Events = append(batch.Events, *ev)
		}
	}
	return batch
}

func (d *Dispatcher) execute(ctx context.Context, inv Invocation) (Result, *Event) {
	if inv.ArgsErr != nil {
		d.log.Warn("malformed tool arguments", "tool", inv.Name, "call_id", inv.CallID, "error", inv.ArgsErr)
		return errResult(inv, inv.ArgsErr.Error()), nil
	}

	switch inv.Kind {
	case KindSearchKnowledgeBase:
		return d.search(ctx, inv), nil
	case KindShowScreenImage:
		return d.showScreen(inv)
	case KindShowKnowledgeImage:
		return d.showSnippetImage(ctx, inv)
	default:
		d.log.Warn("unknown tool requested", "tool", inv.Name, "call_id", inv.CallID)
		return errResult(inv, errUnknownFunction), nil
	}
}

func (d *Dispatcher) search(ctx context.Context, inv Invocation) Result {
	answer, ok, err := d.kb.Search(ctx, inv.Search.Query)
	if err != nil {
		d.log.Warn("knowledge search failed", "query", inv.Search.Query, "error", err)
	}
	if err != nil || !ok {
		return okResult(inv, noMatch)
	}
	return okResult(inv, answer)
}

func (d *Dispatcher) showScreen(inv Invocation) (Result, *Event) {
	url, ok := d.kb.ScreenImage(inv.Screen.ScreenName)
	if !ok {
		return errResult(inv, errScreenMissing), nil
	}
	return okResult(inv, resultScreenShown), &Event{CallID: inv.CallID, ImageURL: url}
}

func (d *Dispatcher) showSnippetImage(ctx context.Context, inv Invocation) (Result, *Event) {
	snippets, err := d.kb.Snippets(ctx)
	if err != nil {
		d.log.Warn("load snippets failed", "snippet_id", inv.Snippet.SnippetID, "error", err)
		return errResult(inv, errSnippetMissing), nil
	}
	id := strings.TrimSpace(inv.Snippet.SnippetID)
	for _, sn := range snippets {
		if sn.ID == id && sn.HasImage() {
			return okResult(inv, resultSnippetShown), &Event{CallID: inv.CallID, ImageURL: sn.ImageURL}
		}
	}
	return errResult(inv, errSnippetMissing), nil
}
