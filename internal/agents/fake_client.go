package agents

import "context"

// FakeClient is a test double for Client: callers preload canned JSON/text
// responses keyed by schemaName (for GenerateJSON) or consumed in FIFO
// order (for GenerateText).
type FakeClient struct {
	JSONResponses map[string]map[string]any
	TextResponses []string
	textIdx       int
	Calls         []string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{JSONResponses: map[string]map[string]any{}}
}

func (f *FakeClient) GenerateJSON(_ context.Context, _, _ string, schemaName string, _ map[string]any) (map[string]any, error) {
	f.Calls = append(f.Calls, "json:"+schemaName)
	return f.JSONResponses[schemaName], nil
}

func (f *FakeClient) GenerateText(_ context.Context, _, _ string) (string, error) {
	f.Calls = append(f.Calls, "text")
	if f.textIdx >= len(f.TextResponses) {
		return "", nil
	}
	out := f.TextResponses[f.textIdx]
	f.textIdx++
	return out, nil
}
