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

package generation

import "errors"

var (
	// ErrGeneratorRequired indicates the backend was built without a local model.
	ErrGeneratorRequired = errors.New("generator is required")

	// ErrGeneration indicates the local model failed to produce an answer.
	ErrGeneration = errors.New("generation failed")

	// ErrValidation indicates the cloud model failed to review an answer.
	ErrValidation = errors.New("validation failed")
)
