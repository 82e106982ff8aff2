package translate

import (
	"context"
	"strings"
)

// MockProvider is the guaranteed-success terminal strategy. It tags the
// input with the upper-cased target language instead of translating.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (*MockProvider) Name() string { return ProviderMock }

func (*MockProvider) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	return "[" + strings.ToUpper(targetLang) + "] " + text, nil
}
