package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPrimaryKey is returned when a model declares no primary key
	ErrNoPrimaryKey = errors.New("no primary key defined")

	// ErrUnresolvedRelation is returned when a relation target is still a
	// string the framework has not resolved into a model
	ErrUnresolvedRelation = errors.New("unresolved relation target")

	// ErrAppNotFound is returned when no declarations exist for an installed app
	ErrAppNotFound = errors.New("app not found")

	// ErrAppRegistryNotReady is returned when the registry is used before population
	ErrAppRegistryNotReady = errors.New("apps aren't loaded yet")
)

// FieldDoesNotExist is returned when a model has no member with the requested name.
type FieldDoesNotExist struct {
	Model string
	Field string
}

// Error implements the error interface
func (e *FieldDoesNotExist) Error() string {
	return fmt.Sprintf("%s has no field named '%s'", e.Model, e.Field)
}

// LookupError is returned when the registry has no model for a label.
type LookupError struct {
	AppLabel  string
	ModelName string
	NoApp     bool
}

// Error implements the error interface
func (e *LookupError) Error() string {
	if e.NoApp {
		return fmt.Sprintf("No installed app with label '%s'.", e.AppLabel)
	}
	if e.ModelName == "" {
		return fmt.Sprintf("Invalid model reference '%s'. String model references must be of the form 'app_label.ModelName'.", e.AppLabel)
	}
	return fmt.Sprintf("App '%s' doesn't have a '%s' model.", e.AppLabel, e.ModelName)
}

// DeclarationError reports an invalid model declaration with context.
type DeclarationError struct {
	App     string
	Model   string
	Field   string
	Message string
}

// Error implements the error interface
func (e *DeclarationError) Error() string {
	location := e.App
	if e.Model != "" {
		location += "." + e.Model
		if e.Field != "" {
			location += "." + e.Field
		}
	}
	return fmt.Sprintf("%s: %s", location, e.Message)
}
