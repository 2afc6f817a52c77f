// This file is part of Weirding Host Utility
// Copyright (c) 2025 Weirding Host contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package utils

import (
	"encoding/json"
	"fmt"

	yamlFormatter "sigs.k8s.io/yaml"
)

// ToYAML marshals obj to a YAML document.
func ToYAML(obj interface{}) (string, error) {
	formattedObj, err := yamlFormatter.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("error marshaling to YAML: %v", err)
	}
	return string(formattedObj), nil
}

// ToJSON marshals obj to indented JSON.
func ToJSON(obj interface{}) (string, error) {
	formattedObj, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshaling to JSON: %v", err)
	}
	return string(formattedObj), nil
}
