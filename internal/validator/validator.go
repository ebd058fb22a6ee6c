package validator

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Validate crawls every state reachable from root exactly once and reports every
// transition target and trigger action that does not resolve. Targets are resolved
// with the same scope-chain rule the runtime uses, relative to the path by which
// each state was first discovered. A shared state entered through another
// parent may still fail to resolve a target at runtime.
func Validate(root *domain.State) []domain.Issue {
	if root == nil {
		return []domain.Issue{{Key: "graph", Message: "no root state"}}
	}

	var issues []domain.Issue
	domain.Walk(root, func(path []*domain.State) bool {
		state := path[len(path)-1]
		prefix := domain.PathString(path)

		for _, trigger := range state.Triggers() {
			key := fmt.Sprintf("%s/trigger:%s", prefix, trigger.Event())
			switch action := trigger.Action().(type) {
			case *domain.Transition:
				if _, err := domain.ResolveTarget(path, action.Target()); err != nil {
					issues = append(issues, domain.Issue{
						Key:     key,
						Message: fmt.Sprintf("transition %q: %v", action.Name(), err),
					})
				}
			case *domain.Operation:
				if op, _ := domain.ResolveOperation(path, action.Name()); op == nil {
					issues = append(issues, domain.Issue{
						Key:     key,
						Message: fmt.Sprintf("operation %q is not declared on %q or its ancestors", action.Name(), state.Name()),
					})
				}
			}
		}

		for _, transition := range state.Transitions() {
			if _, err := domain.ResolveTarget(path, transition.Target()); err != nil {
				issues = append(issues, domain.Issue{
					Key:     fmt.Sprintf("%s/transition:%s", prefix, transition.Name()),
					Message: err.Error(),
				})
			}
		}
		return true
	})
	return issues
}

// ValidateGraph runs Validate and aggregates the issues into a single error.
func ValidateGraph(root *domain.State) error {
	if issues := Validate(root); len(issues) > 0 {
		return &domain.IssuesError{Issues: issues}
	}
	return nil
}
