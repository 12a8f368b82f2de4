package locator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapFinder struct {
	present map[string]map[Resource]bool
	failing map[string]error
	queried []string
}

func (m *mapFinder) Exists(_ context.Context, ns string, r Resource) (bool, error) {
	m.queried = append(m.queried, ns)
	if err, ok := m.failing[ns]; ok {
		return false, err
	}
	return m.present[ns][r], nil
}

var stack = Resource{Kind: "Stack", Name: "aws-infra"}

func TestFind_ResourceOnlyInSecondCandidate(t *testing.T) {
	f := &mapFinder{present: map[string]map[Resource]bool{"ns-b": {stack: true}}}

	ns, ok := Find(context.Background(), f, stack, Options{}, "ns-a", "ns-b")
	assert.True(t, ok)
	assert.Equal(t, "ns-b", ns)
	assert.Equal(t, []string{"ns-a", "ns-b"}, f.queried)
}

func TestFind_EarlierCandidateWins(t *testing.T) {
	f := &mapFinder{present: map[string]map[Resource]bool{
		"explicit": {stack: true},
		"default":  {stack: true},
	}}

	ns, ok := Find(context.Background(), f, stack, Options{}, "explicit", "default")
	assert.True(t, ok)
	assert.Equal(t, "explicit", ns)
	assert.Equal(t, []string{"explicit"}, f.queried, "lookup stops at the first match")
}

func TestFind_NotFoundIsAResult(t *testing.T) {
	f := &mapFinder{}

	ns, ok := Find(context.Background(), f, stack, Options{}, "ns-a", "ns-b")
	assert.False(t, ok)
	assert.Empty(t, ns)
}

func TestFind_ErrorsAreMisses(t *testing.T) {
	f := &mapFinder{
		present: map[string]map[Resource]bool{"ns-b": {stack: true}},
		failing: map[string]error{"ns-a": errors.New("forbidden")},
	}

	var reported []string
	ns, ok := Find(context.Background(), f, stack, Options{
		OnError: func(ns string, err error) { reported = append(reported, ns+": "+err.Error()) },
	}, "ns-a", "ns-b")

	assert.True(t, ok)
	assert.Equal(t, "ns-b", ns)
	assert.Equal(t, []string{"ns-a: forbidden"}, reported)
}

func TestInNamespaces_DropsEmptyAndDuplicates(t *testing.T) {
	f := &mapFinder{}
	strategies := InNamespaces(f, stack, Options{}, "", "a", "b", "a", "")
	assert.Len(t, strategies, 2)

	FirstMatch(context.Background(), strategies...)
	assert.Equal(t, []string{"a", "b"}, f.queried)
}

func TestFirstMatch_MixedStrategies(t *testing.T) {
	calls := 0
	strategies := []Strategy{
		StrategyFunc(func(context.Context) (string, bool) { calls++; return "", false }),
		StrategyFunc(func(context.Context) (string, bool) { calls++; return "from-label", true }),
		StrategyFunc(func(context.Context) (string, bool) { calls++; return "never", true }),
	}

	ns, ok := FirstMatch(context.Background(), strategies...)
	assert.True(t, ok)
	assert.Equal(t, "from-label", ns)
	assert.Equal(t, 2, calls)
}

func TestFirstMatch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &mapFinder{present: map[string]map[Resource]bool{"a": {stack: true}}}
	_, ok := Find(ctx, f, stack, Options{}, "a")
	assert.False(t, ok)
	assert.Empty(t, f.queried)
}

func TestResourceString(t *testing.T) {
	assert.Equal(t, "Stack/aws-infra", stack.String())
}
