// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"
)

// ValidateMedication validates a Medication according to domain rules.
//
// Validation rules:
//   - Name must not be empty after trimming
//   - Vector must not be empty
//
// NOT validated:
//   - ID (0 is valid until the store assigns one)
//   - Vector dimension (checked against the catalog, not per record)
func ValidateMedication(med *Medication) error {
	if med == nil {
		return fmt.Errorf("%w: medication is nil", ErrInvalidMedication)
	}

	if strings.TrimSpace(med.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMedication, ErrEmptyName)
	}

	if len(med.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMedication, ErrEmptyVector)
	}

	return nil
}

// ValidateQuery checks that a query has at least one non-whitespace character.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyQuery)
	}
	return nil
}

// ValidateK checks that a result count is positive.
func ValidateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidArgument, ErrInvalidK, k)
	}
	return nil
}

// MajorityDimension returns the vector length shared by the most valid
// medications, or 0 when none are valid. On a tie the length that reached the
// count first wins.
func MajorityDimension(meds []Medication) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for i := range meds {
		if ValidateMedication(&meds[i]) != nil {
			continue
		}
		dim := len(meds[i].Vector)
		counts[dim]++
		if counts[dim] > bestCount {
			best, bestCount = dim, counts[dim]
		}
	}
	return best
}
