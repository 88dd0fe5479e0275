package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IncidentID identifies a ticket in the ticketing system. The API returns
// numeric ids; string ids are accepted as well.
type IncidentID string

func (id *IncidentID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = IncidentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("incident id: %w", err)
	}
	*id = IncidentID(n.String())
	return nil
}

func (id IncidentID) String() string {
	return string(id)
}

// VariableValue is the loosely typed value of a request variable, kept as text.
// Multi-select and object values keep their compact JSON text.
type VariableValue string

func (v *VariableValue) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*v = ""
	case string:
		*v = VariableValue(val)
	case json.Number:
		*v = VariableValue(val.String())
	case bool:
		*v = VariableValue(strconv.FormatBool(val))
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err != nil {
			return err
		}
		*v = VariableValue(compact.String())
	}
	return nil
}

// Variable is one {type, name, value} entry of an incident's request variables.
type Variable struct {
	Type  string        `json:"type"`
	Name  string        `json:"name"`
	Value VariableValue `json:"value"`
}

// NamedRef is a nested object of which only the name is used.
type NamedRef struct {
	Name string `json:"name"`
}

// Incident is an onboarding request fetched from the ticketing system.
// It is read-only to this service.
type Incident struct {
	ID         IncidentID `json:"id"`
	Name       string     `json:"name"`
	Variables  []Variable `json:"request_variables"`
	Department NamedRef   `json:"department"`
	Site       NamedRef   `json:"site"`

	// Raw is the complete decoded object as returned by the API.
	Raw map[string]any `json:"-"`
}

func (i *Incident) UnmarshalJSON(data []byte) error {
	type incidentAlias Incident
	var alias incidentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Incident(alias)
	i.Raw = raw
	return nil
}
