package commands

import (
	"context"
	"fmt"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

// RunCheck evaluates an authorization query and prints the decision.
// Exits non-zero only on evaluation errors; a denied decision is a normal
// outcome.
func RunCheck(ctx context.Context, args []string) error {
	if err := requireArgs(args, 3, "check <subject> <object> <permission>"); err != nil {
		return err
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	decider, err := container.DecisionUseCase()
	if err != nil {
		return err
	}

	decision, err := decider.Decide(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}

	fmt.Println(decision.String())
	return nil
}

// RunRegister registers a dynamic entity of the given kind.
func RunRegister(ctx context.Context, args []string) error {
	if err := requireArgs(args, 3, "register <kind> <id> <description>"); err != nil {
		return err
	}

	kind, err := parseKindArg(args[0])
	if err != nil {
		return err
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	registry, err := container.RegistryUseCase()
	if err != nil {
		return err
	}

	return registry.Register(ctx, kind, args[1], args[2])
}

// RunRule executes one of the four rule mutations.
func RunRule(ctx context.Context, action string, args []string) error {
	if err := requireArgs(args, 3, action+" <subject> <object> <permission>"); err != nil {
		return err
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	rules, err := container.RuleUseCase()
	if err != nil {
		return err
	}

	switch action {
	case "grant":
		return rules.Grant(ctx, args[0], args[1], args[2])
	case "deny":
		return rules.Deny(ctx, args[0], args[1], args[2])
	case "revoke":
		return rules.Revoke(ctx, args[0], args[1], args[2])
	case "allow":
		return rules.Allow(ctx, args[0], args[1], args[2])
	default:
		return fmt.Errorf("unknown rule action %q", action)
	}
}

// RunAddChild adds a parent -> child edge to a hierarchy.
func RunAddChild(ctx context.Context, args []string) error {
	if err := requireArgs(args, 3, "add-child <kind> <parent> <child>"); err != nil {
		return err
	}

	kind, err := parseKindArg(args[0])
	if err != nil {
		return err
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	hierarchy, err := container.HierarchyUseCase()
	if err != nil {
		return err
	}

	return hierarchy.AddChild(ctx, kind, args[1], args[2])
}

// RunRemoveChild removes a parent -> child edge from a hierarchy.
func RunRemoveChild(ctx context.Context, args []string) error {
	if err := requireArgs(args, 3, "remove-child <kind> <parent> <child>"); err != nil {
		return err
	}

	kind, err := parseKindArg(args[0])
	if err != nil {
		return err
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	hierarchy, err := container.HierarchyUseCase()
	if err != nil {
		return err
	}

	return hierarchy.RemoveChild(ctx, kind, args[1], args[2])
}

// RunMembers prints the descendants of a node, one per line.
func RunMembers(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "members <kind> <id>"); err != nil {
		return err
	}

	kind, err := parseKindArg(args[0])
	if err != nil {
		return err
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	hierarchy, err := container.HierarchyUseCase()
	if err != nil {
		return err
	}

	members, err := hierarchy.Members(ctx, kind, args[1])
	if err != nil {
		return err
	}

	for _, member := range members {
		fmt.Println(member)
	}
	return nil
}

// RunListRules prints the rules an entity participates in, one per line.
func RunListRules(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "list-rules <subject|object> <id>"); err != nil {
		return err
	}

	kind, err := parseKindArg(args[0])
	if err != nil {
		return err
	}
	if kind == domain.KindPermission {
		return fmt.Errorf("rules are listed by subject or object")
	}

	container, logger := newContainer()
	defer closeContainer(container, logger)

	rules, err := container.RuleUseCase()
	if err != nil {
		return err
	}

	views, err := rules.ListRules(ctx, kind, args[1])
	if err != nil {
		return err
	}

	for _, v := range views {
		fmt.Printf("%s %s %s %s\n", v.Sign, v.Subject, v.Permission, v.Object)
	}
	return nil
}
