package condition

import (
	"encoding/json"
	"fmt"
)

// Entry is a tagged union on the wire: it unmarshals as a group if it has a
// "logic" key, otherwise as a leaf condition. This mirrors how the runtime-
// typed source data models the same recursive shape without a sum type.

// UnmarshalJSON implements json.Unmarshaler for Entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Logic *Logic `json:"logic"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("condition: invalid entry: %w", err)
	}
	if probe.Logic != nil {
		var g ConditionGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("condition: invalid group entry: %w", err)
		}
		e.Group = &g
		e.Condition = nil
		return nil
	}
	var c Condition
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("condition: invalid leaf entry: %w", err)
	}
	e.Condition = &c
	e.Group = nil
	return nil
}

// MarshalJSON implements json.Marshaler for Entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Group != nil {
		return json.Marshal(e.Group)
	}
	if e.Condition != nil {
		return json.Marshal(e.Condition)
	}
	return []byte("null"), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Entry.
func (e *Entry) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var probe struct {
		Logic *Logic `yaml:"logic"`
	}
	if err := unmarshal(&probe); err != nil {
		return fmt.Errorf("condition: invalid entry: %w", err)
	}
	if probe.Logic != nil {
		var g ConditionGroup
		if err := unmarshal(&g); err != nil {
			return fmt.Errorf("condition: invalid group entry: %w", err)
		}
		e.Group = &g
		e.Condition = nil
		return nil
	}
	var c Condition
	if err := unmarshal(&c); err != nil {
		return fmt.Errorf("condition: invalid leaf entry: %w", err)
	}
	e.Condition = &c
	e.Group = nil
	return nil
}
