package tools

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
)

type fakeKnowledge struct {
	answers     map[string]string
	screens     knowledge.ScreenCatalog
	snippets    []knowledge.Snippet
	snippetsErr error
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeKnowledge) track() func() {
	n := f.inFlight.Add(1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(f.delay)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeKnowledge) Search(_ context.Context, query string) (string, bool, error) {
	defer f.track()()
	answer, ok := f.answers[query]
	return answer, ok, nil
}

func (f *fakeKnowledge) ScreenImage(name string) (string, bool) {
	defer f.track()()
	return f.screens.Lookup(name)
}

func (f *fakeKnowledge) Snippets(context.Context) ([]knowledge.Snippet, error) {
	defer f.track()()
	return f.snippets, f.snippetsErr
}

func newFake() *fakeKnowledge {
	return &fakeKnowledge{
		answers: map[string]string{"invoice": "Alt+S"},
		screens: knowledge.DefaultScreenCatalog(),
		snippets: []knowledge.Snippet{
			{ID: "s1", Content: "with image", ImageURL: "https://img/s1.png"},
			{ID: "s2", Content: "no image"},
		},
	}
}

func TestParse(t *testing.T) {
	inv := Parse(ai.FunctionCall{ID: "c1", Name: NameShowScreenImage, Arguments: `{"screen_name":"sales"}`})
	if inv.Kind != KindShowScreenImage || inv.Screen.ScreenName != "sales" || inv.CallID != "c1" {
		t.Fatalf("unexpected invocation %+v", inv)
	}

	bad := Parse(ai.FunctionCall{ID: "c2", Name: NameSearchKnowledgeBase, Arguments: `not json`})
	if bad.Kind != KindSearchKnowledgeBase || bad.ArgsErr == nil {
		t.Fatalf("malformed args should carry a decode error, got %+v", bad)
	}

	if empty := Parse(ai.FunctionCall{ID: "c3", Name: NameShowScreenImage}); empty.ArgsErr != nil {
		t.Fatalf("missing args decode as an empty object, got %v", empty.ArgsErr)
	}

	if Parse(ai.FunctionCall{Name: "delete_everything"}).Kind != KindUnknown {
		t.Fatal("unknown names map to KindUnknown")
	}
}

func TestDeclarations(t *testing.T) {
	decls := Declarations()
	if len(decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(decls))
	}
	for i, name := range []string{NameSearchKnowledgeBase, NameShowScreenImage, NameShowKnowledgeImage} {
		if decls[i].Name != name || KindOf(name).String() != name {
			t.Fatalf("declaration %d = %s, want %s", i, decls[i].Name, name)
		}
	}
}

func TestDispatchSearch(t *testing.T) {
	d := NewDispatcher(newFake(), nil)
	batch := d.Dispatch(context.Background(), []ai.FunctionCall{
		{ID: "hit", Name: NameSearchKnowledgeBase, Arguments: `{"query":"invoice"}`},
		{ID: "miss", Name: NameSearchKnowledgeBase, Arguments: `{"query":"unknown"}`},
	})

	if len(batch.Events) != 0 {
		t.Fatalf("search never emits events, got %d", len(batch.Events))
	}
	if batch.Results[0].Response["result"] != "Alt+S" {
		t.Fatalf("unexpected hit result %+v", batch.Results[0])
	}
	if batch.Results[1].Response["result"] != noMatch || batch.Results[1].Failed() {
		t.Fatalf("miss should be a non-error fallback, got %+v", batch.Results[1])
	}
}

func TestDispatchScreenImage(t *testing.T) {
	d := NewDispatcher(newFake(), nil)

	known := d.Dispatch(context.Background(), []ai.FunctionCall{{ID: "c1", Name: NameShowScreenImage, Arguments: `{"screen_name":"inventory"}`}})
	if len(known.Events) != 1 || known.Results[0].Failed() {
		t.Fatalf("known screen should emit one image, got %+v", known)
	}
	if known.Events[0].CallID != "c1" || known.Events[0].ImageURL == "" {
		t.Fatalf("unexpected event %+v", known.Events[0])
	}

	unknown := d.Dispatch(context.Background(), []ai.FunctionCall{{ID: "c2", Name: NameShowScreenImage, Arguments: `{"screen_name":"barcode"}`}})
	if len(unknown.Events) != 0 || unknown.Results[0].Response["error"] != errScreenMissing {
		t.Fatalf("unmapped screen should report an error, got %+v", unknown)
	}
}

func TestDispatchSnippetImage(t *testing.T) {
	d := NewDispatcher(newFake(), nil)
	batch := d.Dispatch(context.Background(), []ai.FunctionCall{
		{ID: "a", Name: NameShowKnowledgeImage, Arguments: `{"snippet_id":"s1"}`},
		{ID: "b", Name: NameShowKnowledgeImage, Arguments: `{"snippet_id":"s2"}`},
		{ID: "c", Name: NameShowKnowledgeImage, Arguments: `{"snippet_id":"nope"}`},
	})

	if len(batch.Events) != 1 || batch.Events[0].ImageURL != "https://img/s1.png" {
		t.Fatalf("expected one snippet image, got %+v", batch.Events)
	}
	if batch.Results[0].Response["result"] != resultSnippetShown {
		t.Fatalf("unexpected result %+v", batch.Results[0])
	}
	for _, r := range batch.Results[1:] {
		if r.Response["error"] != errSnippetMissing {
			t.Fatalf("expected snippet error, got %+v", r)
		}
	}
}

func TestDispatchSnippetStoreError(t *testing.T) {
	fake := newFake()
	fake.snippetsErr = errors.New("down")
	batch := NewDispatcher(fake, nil).Dispatch(context.Background(), []ai.FunctionCall{{ID: "a", Name: NameShowKnowledgeImage, Arguments: `{"snippet_id":"s1"}`}})
	if !batch.Results[0].Failed() || len(batch.Events) != 0 {
		t.Fatalf("store failure should become an error result, got %+v", batch)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	batch := NewDispatcher(newFake(), nil).Dispatch(context.Background(), []ai.FunctionCall{{ID: "x", Name: "format_disk"}})
	r := batch.Results[0]
	if r.Response["error"] != errUnknownFunction || r.Name != "format_disk" || r.CallID != "x" {
		t.Fatalf("unexpected unknown-tool result %+v", r)
	}
}

func TestDispatchMalformedArguments(t *testing.T) {
	fake := newFake()
	batch := NewDispatcher(fake, nil).Dispatch(context.Background(), []ai.FunctionCall{
		{ID: "a", Name: NameShowScreenImage, Arguments: `{"screen_name":`},
		{ID: "b", Name: NameSearchKnowledgeBase, Arguments: `{"query":42}`},
	})

	if len(batch.Events) != 0 {
		t.Fatalf("malformed calls must not emit images, got %+v", batch.Events)
	}
	for _, r := range batch.Results {
		msg, _ := r.Response["error"].(string)
		if !strings.Contains(msg, "invalid arguments for "+r.Name) {
			t.Fatalf("expected argument error for %s, got %+v", r.CallID, r.Response)
		}
	}
	if fake.maxInFlight.Load() != 0 {
		t.Fatal("knowledge lookups should be skipped for malformed calls")
	}
}

func TestDispatchRunsConcurrentlyAndKeepsOrder(t *testing.T) {
	fake := newFake()
	fake.delay = 30 * time.Millisecond
	d := NewDispatcher(fake, nil)

	calls := []ai.FunctionCall{
		{ID: "1", Name: NameSearchKnowledgeBase, Arguments: `{"query":"invoice"}`},
		{ID: "2", Name: NameShowScreenImage, Arguments: `{"screen_name":"sales"}`},
		{ID: "3", Name: NameShowScreenImage, Arguments: `{"screen_name":"purchases"}`},
	}
	batch := d.Dispatch(context.Background(), calls)

	for i, r := range batch.Results {
		if r.CallID != calls[i].ID || r.Name != calls[i].Name {
			t.Fatalf("result %d tagged %s/%s, want %s/%s", i, r.CallID, r.Name, calls[i].ID, calls[i].Name)
		}
	}
	if len(batch.Events) != 2 {
		t.Fatalf("expected 2 image events, got %d", len(batch.Events))
	}
	if fake.maxInFlight.Load() < 2 {
		t.Fatalf("expected concurrent execution, max in flight = %d", fake.maxInFlight.Load())
	}

	msgs := batch.Messages()
	if len(msgs) != 3 || msgs[1].ToolCallID != "2" {
		t.Fatalf("unexpected tool messages %+v", msgs)
	}
}
