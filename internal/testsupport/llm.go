package testsupport

import (
	"context"
	"strings"
	"sync"

	"webinar2ebook/internal/services"
	"webinar2ebook/internal/services/llm"
)

// FakeLLM is a scripted llm.Client for tests. Responses are matched against
// the user prompt by substring rule, falling back to a queued list, then to a
// default response.
type FakeLLM struct {
	mu        sync.Mutex
	rules     []fakeRule
	queue     []fakeReply
	fallback  string
	callCount int
	prompts   []llm.Request
}

type fakeRule struct {
	substring string
	response  string
	err       error
}

type fakeReply struct {
	response string
	err      error
}

// NewFakeLLM builds a fake client with a default response.
func NewFakeLLM(fallback string) *FakeLLM {
	return &FakeLLM{fallback: fallback}
}

// Respond registers a response for any prompt containing the substring.
func (f *FakeLLM) Respond(substring, response string) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{substring: substring, response: response})
	return f
}

// Fail registers an error for any prompt containing the substring.
func (f *FakeLLM) Fail(substring string, err error) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{substring: substring, err: err})
	return f
}

// Enqueue appends a one-shot response consumed in order when no rule matches.
func (f *FakeLLM) Enqueue(response string) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{response: response})
	return f
}

// EnqueueError appends a one-shot error consumed in order when no rule matches.
func (f *FakeLLM) EnqueueError(err error) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{err: err})
	return f
}

// TransientError builds an error the retry policy treats as retryable.
func TransientError(message string) error {
	return services.Wrap(services.ErrTransient, "llm", "complete", message, nil)
}

func (f *FakeLLM) Name() string { return "fake" }

// Complete returns the first matching scripted response.
func (f *FakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	f.prompts = append(f.prompts, req)

	for _, rule := range f.rules {
		if strings.Contains(req.User, rule.substring) || strings.Contains(req.System, rule.substring) {
			if rule.err != nil {
				return "", rule.err
			}
			return rule.response, nil
		}
	}
	if len(f.queue) > 0 {
		reply := f.queue[0]
		f.queue = f.queue[1:]
		if reply.err != nil {
			return "", reply.err
		}
		return reply.response, nil
	}
	return f.fallback, nil
}

// Calls returns how many completions ran.
func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// Prompts returns a copy of every request the fake received.
func (f *FakeLLM) Prompts() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]llm.Request, len(f.prompts))
	copy(cp, f.prompts)
	return cp
}
