package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/podstore/podstore/pkg/space"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom rules
// that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	storeNames := make(map[string]bool)
	for i, store := range cfg.Stores {
		if storeNames[store.Name] {
			return fmt.Errorf("stores[%d]: duplicate store name %q", i, store.Name)
		}
		storeNames[store.Name] = true
	}

	if len(cfg.Pods) == 0 {
		return fmt.Errorf("pods: at least one pod must be configured")
	}

	podNames := make(map[string]bool)
	storeUsers := make(map[string]string)
	roots := make([]space.ResourceURI, 0, len(cfg.Pods))
	for i, pod := range cfg.Pods {
		if podNames[pod.Name] {
			return fmt.Errorf("pods[%d]: duplicate pod name %q", i, pod.Name)
		}
		podNames[pod.Name] = true

		if !storeNames[pod.Store] {
			return fmt.Errorf("pods[%d]: references unknown store %q", i, pod.Store)
		}
		// Object keys are space-relative, so two pods on one store entry
		// would collide. Spaces share a bucket through separate entries
		// with distinct key prefixes.
		if user, taken := storeUsers[pod.Store]; taken {
			return fmt.Errorf("pods[%d]: store %q is already used by pod %q", i, pod.Store, user)
		}
		storeUsers[pod.Store] = pod.Name

		root, err := space.ParseResourceURI(pod.Root)
		if err != nil {
			return fmt.Errorf("pods[%d]: invalid root: %w", i, err)
		}
		if !root.IsContainerURI() {
			return fmt.Errorf("pods[%d]: root %q is not a container uri", i, pod.Root)
		}
		for _, other := range roots {
			if hasPrefixURI(root, other) || hasPrefixURI(other, root) {
				return fmt.Errorf("pods[%d]: root %s overlaps another pod's root %s", i, root, other)
			}
		}
		roots = append(roots, root)

		if pod.Description != "" {
			if _, err := space.ParseResourceURI(pod.Description); err != nil {
				return fmt.Errorf("pods[%d]: invalid description uri: %w", i, err)
			}
		}
	}
	return nil
}

func hasPrefixURI(uri, prefix space.ResourceURI) bool {
	return len(uri) >= len(prefix) && uri[:len(prefix)] == prefix
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
